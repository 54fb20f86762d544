// Package buffer pools the byte slices used for account data copies.
//
// Buffers are bucketed by power-of-two capacity. Requests above MaxPooled are
// allocated directly and dropped on Put.
package buffer

import (
	"math/bits"
	"sync"
)

const (
	// MinPooled is the smallest bucket capacity.
	MinPooled = 64
	// MaxPooled is the largest bucket capacity.
	MaxPooled = 64 * 1024
)

// Pool hands out zeroed byte slices of a requested length.
type Pool struct {
	pools map[int]*sync.Pool
}

func NewPool() *Pool {
	p := &Pool{
		pools: make(map[int]*sync.Pool),
	}

	for size := MinPooled; size <= MaxPooled; size <<= 1 {
		poolSize := size
		p.pools[size] = &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, poolSize)
				return &buf
			},
		}
	}

	return p
}

// Get returns a zeroed slice of length size.
func (p *Pool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}

	poolSize := bucket(size)
	if poolSize > MaxPooled {
		return make([]byte, size)
	}

	bufPtr := p.pools[poolSize].Get().(*[]byte)
	buf := *bufPtr
	return buf[:size]
}

// Clone copies src into a pooled slice of the same length.
func (p *Pool) Clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := p.Get(len(src))
	if dst == nil {
		return []byte{}
	}
	copy(dst, src)
	return dst
}

// Put returns buf to its bucket. Slices whose capacity is not a bucket size
// are ignored.
func (p *Pool) Put(buf []byte) {
	if buf == nil || cap(buf) == 0 {
		return
	}

	pool, ok := p.pools[cap(buf)]
	if !ok {
		return
	}

	buf = buf[:cap(buf)]
	clear(buf)
	pool.Put(&buf)
}

func bucket(n int) int {
	if n <= MinPooled {
		return MinPooled
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}
