package audiograph

import (
	"fmt"
	"sync"
)

// Node is a processing stage in a Context's graph.
type Node interface {
	// Connect appends dst to this node's outputs.
	Connect(dst Node) error
	// Disconnect removes every output.
	Disconnect()
	base() *graphNode
}

// graphNode carries the connection bookkeeping shared by all nodes.
type graphNode struct {
	ctx     *Context
	input   bool
	process func(buf [][]float64)

	mu      sync.RWMutex
	outputs []Node
}

func (n *graphNode) init(ctx *Context, input bool, process func([][]float64)) {
	n.ctx = ctx
	n.input = input
	n.process = process
}

func (n *graphNode) base() *graphNode { return n }

// Context returns the owning context.
func (n *graphNode) Context() *Context { return n.ctx }

func (n *graphNode) Connect(dst Node) error {
	if dst == nil {
		return fmt.Errorf("connect: nil node: %w", ErrInvalidState)
	}
	d := dst.base()
	if d.ctx != n.ctx {
		return fmt.Errorf("connect: nodes belong to different contexts: %w", ErrInvalidState)
	}
	if !d.input {
		return fmt.Errorf("connect: node has no inputs: %w", ErrInvalidState)
	}
	if d == n || d.reaches(n) {
		return fmt.Errorf("connect: cycle: %w", ErrInvalidState)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, o := range n.outputs {
		if o.base() == d {
			return nil
		}
	}
	n.outputs = append(n.outputs, dst)
	return nil
}

func (n *graphNode) Disconnect() {
	n.mu.Lock()
	n.outputs = nil
	n.mu.Unlock()
}

// Outputs returns the number of connected outputs.
func (n *graphNode) Outputs() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.outputs)
}

func (n *graphNode) reaches(target *graphNode) bool {
	n.mu.RLock()
	outs := n.outputs
	n.mu.RUnlock()
	for _, o := range outs {
		b := o.base()
		if b == target || b.reaches(target) {
			return true
		}
	}
	return false
}

// push processes buf in place and forwards it. Fan-out gets copies so
// branches cannot see each other's processing.
func (n *graphNode) push(buf [][]float64) {
	if n.process != nil {
		n.process(buf)
	}

	n.mu.RLock()
	outs := n.outputs
	n.mu.RUnlock()

	for i, o := range outs {
		b := buf
		if i < len(outs)-1 {
			b = cloneBuffer(buf)
		}
		o.base().push(b)
	}
}

func cloneBuffer(buf [][]float64) [][]float64 {
	out := make([][]float64, len(buf))
	for c, ch := range buf {
		out[c] = append([]float64(nil), ch...)
	}
	return out
}
