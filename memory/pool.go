package memory

// Pool is the stack of unmapped segment indices awaiting reuse.
type Pool struct {
	Index []uint32
}

// Push an unmapped index.
func (p *Pool) Push(index uint32) {
	p.Index = append(p.Index, index)
}

// Pop the most recently unmapped index.
func (p *Pool) Pop() (index uint32, ok bool) {
	index, ok = p.Peek()
	if ok {
		p.Index = p.Index[:len(p.Index)-1]
	}
	return
}

func (p *Pool) Empty() bool {
	return len(p.Index) == 0
}

func (p *Pool) Len() int {
	return len(p.Index)
}

func (p *Pool) Peek() (index uint32, ok bool) {
	if p.Empty() {
		return
	}

	return p.Index[len(p.Index)-1], true
}

// Reset empties the pool, keeping its storage.
func (p *Pool) Reset() {
	if len(p.Index) > 0 {
		p.Index = p.Index[:0]
	}
}
