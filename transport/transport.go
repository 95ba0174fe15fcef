// Package transport defines the point-to-point message passing layer that
// grid layouts and communication channels run over, and provides Mesh, an
// in-process implementation for tests and single-process demos.
//
// A Transport follows a declare/start/wait/free lifecycle: each transfer is
// declared against a caller-owned buffer and returns a Handle, several
// handles can be combined into one, and a started handle must be waited
// before its buffers are reused. Node numbers run lexicographically over
// the logical node grid with axis 0 varying fastest. Between an ordered
// pair of nodes, relative traffic along each axis and direction forms
// its own FIFO channel and direct sends another, so concurrent exchanges
// never steal each other's messages; implementations must also let a
// bounded number of sends complete without a matching receive, since
// exchange schedules issue their sends before their receives.
package transport

import "errors"

var (
	// ErrNotStarted reports an operation on a transport whose message
	// passing layer has not been brought up.
	ErrNotStarted = errors.New("transport: not started")

	// ErrNoTopology reports a relative-addressed operation before
	// LayoutGrid has declared the logical topology.
	ErrNoTopology = errors.New("transport: logical topology not declared")

	// ErrTopologySet reports a LayoutGrid call that conflicts with a
	// topology already declared on the node.
	ErrTopologySet = errors.New("transport: logical topology already declared")

	// ErrUnknownNode reports a node number outside [0, NumNodes).
	ErrUnknownNode = errors.New("transport: unknown node")

	// ErrNoFactorization reports that the node count cannot be spread
	// over the grid axes so that every axis divides evenly.
	ErrNoFactorization = errors.New("transport: node count does not factor over the grid")

	// ErrMessageSize reports a received message whose length does not
	// match the declared receive buffer.
	ErrMessageSize = errors.New("transport: message length does not match receive buffer")

	// ErrHandleStarted reports a second Start on the same handle.
	ErrHandleStarted = errors.New("transport: handle already started")

	// ErrHandleNotStarted reports a Wait on a handle that was never
	// started.
	ErrHandleNotStarted = errors.New("transport: handle not started")
)

// Transport is one node's view of the message passing layer. A node's
// methods must be called from a single goroutine; handles are started and
// waited from that same goroutine.
type Transport interface {
	// LayoutGrid computes the logical node grid for a global extent and
	// records this node's place in it. A non-nil hint fixes the node grid
	// shape instead of letting the transport choose. Every node must call
	// LayoutGrid with identical arguments; the computed topology is
	// identical on every node.
	LayoutGrid(extent []int, hint []int) error

	// LogicalSize returns the node grid shape, or nil before LayoutGrid.
	LogicalSize() []int

	// LogicalCoord returns this node's coordinate in the node grid, or
	// nil before LayoutGrid.
	LogicalCoord() []int

	// SubgridSize returns the per-node block extent, or nil before
	// LayoutGrid.
	SubgridSize() []int

	// SubgridVolume returns the number of sites in the per-node block,
	// or 0 before LayoutGrid.
	SubgridVolume() int

	// NodeNumber returns this node's rank in [0, NumNodes).
	NodeNumber() int

	// NumNodes returns the total node count.
	NumNodes() int

	// Started reports whether the message passing layer is up.
	Started() bool

	// SendRelative declares a send of buf to the neighbor sign steps
	// along axis in the logical grid, with periodic wraparound.
	SendRelative(buf []byte, axis, sign int) (Handle, error)

	// ReceiveRelative declares a receive into buf from the neighbor sign
	// steps along axis in the logical grid, with periodic wraparound.
	ReceiveRelative(buf []byte, axis, sign int) (Handle, error)

	// SendTo declares a send of buf to an arbitrary node.
	SendTo(buf []byte, node int) (Handle, error)

	// ReceiveFrom declares a receive into buf from an arbitrary node.
	ReceiveFrom(buf []byte, node int) (Handle, error)

	// Combine folds several declared handles into one whose Start and
	// Wait apply to all of them.
	Combine(hs ...Handle) (Handle, error)
}

// Handle is one declared transfer. The declaring buffer must not be
// touched between Start and Wait; Free releases whatever the transport
// holds for the transfer and the handle must not be used afterwards.
type Handle interface {
	Start() error
	Wait() error
	Free()
}
