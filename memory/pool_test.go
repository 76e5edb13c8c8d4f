package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_Push(t *testing.T) {
	assert := assert.New(t)

	p := &Pool{}
	assert.True(p.Empty())

	p.Push(3)
	assert.False(p.Empty())
	assert.Equal(1, p.Len())
	assert.Equal(uint32(3), p.Index[0])
}

func TestPool_Pop(t *testing.T) {
	assert := assert.New(t)

	p := &Pool{}
	p.Push(3)
	p.Push(7)

	index, ok := p.Pop()
	assert.True(ok)
	assert.Equal(uint32(7), index)
	assert.Equal(1, p.Len())

	index, ok = p.Pop()
	assert.True(ok)
	assert.Equal(uint32(3), index)
	assert.True(p.Empty())

	index, ok = p.Pop()
	assert.False(ok)
	assert.Equal(uint32(0), index)
}

func TestPool_Peek(t *testing.T) {
	assert := assert.New(t)

	p := &Pool{}
	_, ok := p.Peek()
	assert.False(ok)

	p.Push(1)
	p.Push(2)
	index, ok := p.Peek()
	assert.True(ok)
	assert.Equal(uint32(2), index)
	assert.Equal(2, p.Len())
}

func TestPool_Reset(t *testing.T) {
	assert := assert.New(t)

	p := &Pool{}
	p.Reset()
	assert.True(p.Empty())

	p.Push(1)
	p.Push(2)
	p.Reset()
	assert.True(p.Empty())
}
