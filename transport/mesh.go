package transport

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// linkDepth is how many undelivered messages each logical link buffers;
// a send past this depth blocks in Wait until the receiver drains.
const linkDepth = 64

// Mesh is an in-process Transport: n nodes exchanging copies of byte
// buffers over channels. Each ordered node pair carries one FIFO link
// per logical channel, so relative traffic along an axis never crosses
// with the opposite direction or with direct sends. One Mesh stands in
// for the whole machine; each participant obtains its per-node view
// with Node and drives it from its own goroutine.
type Mesh struct {
	n     int
	mu    sync.Mutex
	links map[linkKey]chan []byte
	nodes []*meshNode
}

// linkKey names one logical channel: relative traffic carries the axis
// and its travel direction, direct sends use axis -1.
type linkKey struct {
	from, to  int
	axis, dir int
}

func directKey(from, to int) linkKey {
	return linkKey{from: from, to: to, axis: -1}
}

// NewMesh builds a mesh of n nodes. It panics when n < 1.
func NewMesh(n int) *Mesh {
	if n < 1 {
		panic("transport: mesh needs at least one node")
	}
	m := &Mesh{n: n, links: make(map[linkKey]chan []byte)}
	m.nodes = make([]*meshNode, n)
	for rank := range m.nodes {
		m.nodes[rank] = &meshNode{mesh: m, rank: rank}
	}
	return m
}

// link returns the channel behind a key, creating it on first use.
func (m *Mesh) link(k linkKey) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.links[k]
	if !ok {
		ch = make(chan []byte, linkDepth)
		m.links[k] = ch
	}
	return ch
}

// Node returns rank's view of the mesh.
func (m *Mesh) Node(rank int) Transport {
	if rank < 0 || rank >= m.n {
		panic(fmt.Sprintf("transport: node %d out of range on a %d-node mesh", rank, m.n))
	}
	return m.nodes[rank]
}

// meshNode is one node's endpoint. Topology state is written once by
// LayoutGrid and read-only afterwards.
type meshNode struct {
	mesh *Mesh
	rank int

	laidOut bool
	size    []int
	coord   []int
	sub     []int
	subVol  int
}

func (n *meshNode) LayoutGrid(extent, hint []int) error {
	if len(extent) == 0 {
		return errors.New("transport: empty grid extent")
	}
	for i, e := range extent {
		if e < 1 {
			return fmt.Errorf("transport: extent[%d] = %d is not positive", i, e)
		}
	}
	size, err := factorGrid(n.mesh.n, extent, hint)
	if err != nil {
		return err
	}
	sub := make([]int, len(extent))
	subVol := 1
	for i := range extent {
		sub[i] = extent[i] / size[i]
		subVol *= sub[i]
	}
	if n.laidOut {
		if slices.Equal(size, n.size) && slices.Equal(sub, n.sub) {
			return nil
		}
		return fmt.Errorf("transport: node grid %v over extent %v conflicts with the declared topology: %w",
			size, extent, ErrTopologySet)
	}
	n.size = size
	n.coord = coordOf(n.rank, size)
	n.sub = sub
	n.subVol = subVol
	n.laidOut = true
	return nil
}

func (n *meshNode) LogicalSize() []int  { return slices.Clone(n.size) }
func (n *meshNode) LogicalCoord() []int { return slices.Clone(n.coord) }
func (n *meshNode) SubgridSize() []int  { return slices.Clone(n.sub) }
func (n *meshNode) SubgridVolume() int  { return n.subVol }
func (n *meshNode) NodeNumber() int     { return n.rank }
func (n *meshNode) NumNodes() int       { return n.mesh.n }
func (n *meshNode) Started() bool       { return true }

// A send sign steps along an axis travels in that direction; the
// matching receive names the sender's offset from itself, so it sees the
// message traveling the opposite way. Both resolve to the same key.
func (n *meshNode) SendRelative(buf []byte, axis, sign int) (Handle, error) {
	to, err := n.neighbor(axis, sign)
	if err != nil {
		return nil, err
	}
	return n.sendHandle(buf, linkKey{from: n.rank, to: to, axis: axis, dir: normStep(sign)}), nil
}

func (n *meshNode) ReceiveRelative(buf []byte, axis, sign int) (Handle, error) {
	from, err := n.neighbor(axis, sign)
	if err != nil {
		return nil, err
	}
	return n.recvHandle(buf, linkKey{from: from, to: n.rank, axis: axis, dir: -normStep(sign)}), nil
}

func (n *meshNode) SendTo(buf []byte, node int) (Handle, error) {
	if node < 0 || node >= n.mesh.n {
		return nil, fmt.Errorf("transport: send to node %d of %d: %w", node, n.mesh.n, ErrUnknownNode)
	}
	return n.sendHandle(buf, directKey(n.rank, node)), nil
}

func (n *meshNode) ReceiveFrom(buf []byte, node int) (Handle, error) {
	if node < 0 || node >= n.mesh.n {
		return nil, fmt.Errorf("transport: receive from node %d of %d: %w", node, n.mesh.n, ErrUnknownNode)
	}
	return n.recvHandle(buf, directKey(node, n.rank)), nil
}

func (n *meshNode) Combine(hs ...Handle) (Handle, error) {
	if len(hs) == 0 {
		return nil, errors.New("transport: combine of zero handles")
	}
	return multiHandle(hs), nil
}

// neighbor resolves the rank sign steps along axis from this node, with
// periodic wraparound.
func (n *meshNode) neighbor(axis, sign int) (int, error) {
	if !n.laidOut {
		return 0, ErrNoTopology
	}
	if axis < 0 || axis >= len(n.size) {
		panic(fmt.Sprintf("transport: axis %d out of range on a %d-axis grid", axis, len(n.size)))
	}
	c := slices.Clone(n.coord)
	c[axis] = (c[axis] + normStep(sign) + n.size[axis]) % n.size[axis]
	return indexOf(c, n.size), nil
}

func normStep(sign int) int {
	if sign < 0 {
		return -1
	}
	return 1
}

func (n *meshNode) sendHandle(buf []byte, k linkKey) Handle {
	link := n.mesh.link(k)
	return &handle{run: func() error {
		link <- slices.Clone(buf)
		return nil
	}}
}

func (n *meshNode) recvHandle(buf []byte, k linkKey) Handle {
	link := n.mesh.link(k)
	return &handle{run: func() error {
		msg := <-link
		if len(msg) != len(buf) {
			return fmt.Errorf("transport: %d-byte message into a %d-byte buffer: %w",
				len(msg), len(buf), ErrMessageSize)
		}
		copy(buf, msg)
		return nil
	}}
}

// handle runs one transfer in a goroutine on Start and joins it on Wait.
type handle struct {
	run     func() error
	done    chan error
	started bool
	waited  bool
	err     error
}

func (h *handle) Start() error {
	if h.started {
		return ErrHandleStarted
	}
	h.started = true
	h.done = make(chan error, 1)
	go func() { h.done <- h.run() }()
	return nil
}

func (h *handle) Wait() error {
	if !h.started {
		return ErrHandleNotStarted
	}
	if !h.waited {
		h.err = <-h.done
		h.waited = true
	}
	return h.err
}

func (h *handle) Free() {}

// multiHandle fans Start, Wait and Free out over its members; Wait joins
// every member before reporting the first failure.
type multiHandle []Handle

func (m multiHandle) Start() error {
	for _, h := range m {
		if err := h.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (m multiHandle) Wait() error {
	var first error
	for _, h := range m {
		if err := h.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiHandle) Free() {
	for _, h := range m {
		h.Free()
	}
}

// factorGrid spreads nodes over the extent axes. A non-nil hint fixes the
// node grid outright; otherwise prime factors of the node count are
// assigned, largest first, to the axis with the largest still-divisible
// block, ties going to the highest axis.
func factorGrid(nodes int, extent, hint []int) ([]int, error) {
	if hint != nil {
		if len(hint) != len(extent) {
			return nil, fmt.Errorf("transport: topology hint %v for a %d-axis grid: %w",
				hint, len(extent), ErrNoFactorization)
		}
		spanned := 1
		for i, h := range hint {
			if h < 1 || extent[i]%h != 0 {
				return nil, fmt.Errorf("transport: hint %v does not divide extent %v: %w",
					hint, extent, ErrNoFactorization)
			}
			spanned *= h
		}
		if spanned != nodes {
			return nil, fmt.Errorf("transport: hint %v spans %d nodes, have %d: %w",
				hint, spanned, nodes, ErrNoFactorization)
		}
		return slices.Clone(hint), nil
	}
	grid := make([]int, len(extent))
	for i := range grid {
		grid[i] = 1
	}
	for _, p := range primeFactors(nodes) {
		best := -1
		for a := len(extent) - 1; a >= 0; a-- {
			block := extent[a] / grid[a]
			if block%p != 0 {
				continue
			}
			if best < 0 || block > extent[best]/grid[best] {
				best = a
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("transport: %d nodes over extent %v: %w",
				nodes, extent, ErrNoFactorization)
		}
		grid[best] *= p
	}
	return grid, nil
}

// primeFactors returns the prime factorization of n, largest factor first.
func primeFactors(n int) []int {
	var fs []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			fs = append(fs, p)
			n /= p
		}
	}
	if n > 1 {
		fs = append(fs, n)
	}
	slices.Sort(fs)
	slices.Reverse(fs)
	return fs
}

// indexOf linearizes a coordinate against an extent, axis 0 fastest.
func indexOf(coord, extent []int) int {
	idx := 0
	for i := len(extent) - 1; i >= 0; i-- {
		idx = idx*extent[i] + coord[i]
	}
	return idx
}

// coordOf is the inverse of indexOf.
func coordOf(index int, extent []int) []int {
	coord := make([]int, len(extent))
	for i, e := range extent {
		coord[i] = index % e
		index /= e
	}
	return coord
}

// RunNodes drives fn as every node of a fresh n-node mesh, one goroutine
// per node, and returns the errors the nodes reported, joined.
func RunNodes(n int, fn func(tr Transport) error) error {
	m := NewMesh(n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for rank := 0; rank < n; rank++ {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[rank] = fn(m.Node(rank))
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
