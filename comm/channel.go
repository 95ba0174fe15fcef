// Package comm drives boundary exchanges over a transport: blocking and
// request-based paired sends along grid axes, and unconditional
// point-to-point transfers for general permutations. A Channel belongs to
// one node and must be used from a single goroutine.
package comm

import (
	"errors"
	"fmt"

	"github.com/notargets/latgrid/transport"
)

var (
	// ErrRequestInFlight reports a second exchange started on an axis
	// and direction whose previous exchange has not been waited.
	ErrRequestInFlight = errors.New("comm: exchange already in flight for this axis and direction")

	// ErrRequestNotStarted reports a Wait on a request that was never
	// started or was already waited.
	ErrRequestNotStarted = errors.New("comm: request not started")
)

// Channel runs exchanges for one node. Paired exchanges are keyed by
// (axis, direction); at most one per key may be in flight.
type Channel struct {
	tr       transport.Transport
	inFlight map[dirKey]*Request
}

type dirKey struct {
	axis int
	sign int
}

// NewChannel wraps a transport. The transport must have its logical
// topology declared before any relative exchange.
func NewChannel(tr transport.Transport) *Channel {
	if tr == nil {
		panic("comm: nil transport")
	}
	return &Channel{tr: tr, inFlight: make(map[dirKey]*Request)}
}

// Request is one in-flight paired exchange. Its buffers belong to the
// transport until Wait returns.
type Request struct {
	ch  *Channel
	key dirKey
	h   transport.Handle
}

// SendRecv runs one paired exchange along an axis and blocks until both
// legs finish: recv fills from the neighbor sign steps away while send
// goes to the neighbor opposite. Every node on the ring must call it
// with the same axis and sign.
func (c *Channel) SendRecv(send, recv []byte, axis, sign int) error {
	h, err := c.declarePair(send, recv, axis, normSign(sign))
	if err != nil {
		return err
	}
	defer h.Free()
	if err := h.Start(); err != nil {
		return fmt.Errorf("comm: starting exchange along axis %d: %w", axis, err)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("comm: waiting on exchange along axis %d: %w", axis, err)
	}
	return nil
}

// StartSendRecv begins a paired exchange and returns the request to wait
// on. Exchanges on distinct (axis, direction) keys may overlap; starting
// a second on the same key before its Wait fails with ErrRequestInFlight.
func (c *Channel) StartSendRecv(send, recv []byte, axis, sign int) (*Request, error) {
	key := dirKey{axis: axis, sign: normSign(sign)}
	if _, busy := c.inFlight[key]; busy {
		return nil, fmt.Errorf("comm: axis %d sign %+d: %w", key.axis, key.sign, ErrRequestInFlight)
	}
	h, err := c.declarePair(send, recv, axis, key.sign)
	if err != nil {
		return nil, err
	}
	if err := h.Start(); err != nil {
		h.Free()
		return nil, fmt.Errorf("comm: starting exchange along axis %d: %w", axis, err)
	}
	req := &Request{ch: c, key: key, h: h}
	c.inFlight[key] = req
	return req, nil
}

// Wait blocks until the exchange completes, releases its transport
// resources and frees the (axis, direction) key for the next exchange.
func (r *Request) Wait() error {
	if r == nil || r.h == nil {
		return ErrRequestNotStarted
	}
	err := r.h.Wait()
	r.h.Free()
	r.h = nil
	delete(r.ch.inFlight, r.key)
	if err != nil {
		return fmt.Errorf("comm: waiting on exchange along axis %d: %w", r.key.axis, err)
	}
	return nil
}

// SendTo sends buf to a node and blocks until the transfer hands off to
// the transport.
func (c *Channel) SendTo(node int, buf []byte) error {
	h, err := c.tr.SendTo(buf, node)
	if err != nil {
		return fmt.Errorf("comm: declaring send to node %d: %w", node, err)
	}
	defer h.Free()
	if err := h.Start(); err != nil {
		return fmt.Errorf("comm: starting send to node %d: %w", node, err)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("comm: waiting on send to node %d: %w", node, err)
	}
	return nil
}

// RecvFrom fills buf with the next message from a node, blocking until
// it arrives.
func (c *Channel) RecvFrom(node int, buf []byte) error {
	h, err := c.tr.ReceiveFrom(buf, node)
	if err != nil {
		return fmt.Errorf("comm: declaring receive from node %d: %w", node, err)
	}
	defer h.Free()
	if err := h.Start(); err != nil {
		return fmt.Errorf("comm: starting receive from node %d: %w", node, err)
	}
	if err := h.Wait(); err != nil {
		return fmt.Errorf("comm: waiting on receive from node %d: %w", node, err)
	}
	return nil
}

// declarePair posts the receive from (axis, sign) and the send toward
// (axis, -sign) and folds them into one handle.
func (c *Channel) declarePair(send, recv []byte, axis, sign int) (transport.Handle, error) {
	rh, err := c.tr.ReceiveRelative(recv, axis, sign)
	if err != nil {
		return nil, fmt.Errorf("comm: declaring receive along axis %d: %w", axis, err)
	}
	sh, err := c.tr.SendRelative(send, axis, -sign)
	if err != nil {
		rh.Free()
		return nil, fmt.Errorf("comm: declaring send along axis %d: %w", axis, err)
	}
	h, err := c.tr.Combine(rh, sh)
	if err != nil {
		sh.Free()
		rh.Free()
		return nil, fmt.Errorf("comm: combining exchange legs: %w", err)
	}
	return h, nil
}

func normSign(sign int) int {
	if sign > 0 {
		return 1
	}
	return -1
}
