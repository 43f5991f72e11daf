package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ResetAndStats(t *testing.T) {
	resets := 0
	p := New(
		func() *[]int { s := make([]int, 0, 4); return &s },
		func(s *[]int) { *s = (*s)[:0]; resets++ },
	)

	obj := p.Get()
	*obj = append(*obj, 1, 2)
	allocated, inUse := p.Stats()
	assert.Equal(t, int64(1), allocated)
	assert.Equal(t, int64(1), inUse)

	p.Put(obj)
	_, inUse = p.Stats()
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, 1, resets)
	assert.Empty(t, *obj)
}

func TestVectorPool_ZeroedOnReuse(t *testing.T) {
	vp := NewVectorPool(3)
	assert.Equal(t, 3, vp.Width())

	v := vp.Get()
	v.Values[0], v.Values[2] = 1, 5
	assert.Equal(t, int64(1), vp.InUse())
	vp.Put(v)
	assert.Equal(t, int64(0), vp.InUse())

	next := vp.Get()
	assert.Equal(t, []float64{0, 0, 0}, next.Values)
	vp.Put(next)
}

func TestVectorPool_IgnoresForeignVectors(t *testing.T) {
	vp := NewVectorPool(2)
	vp.Put(nil)
	vp.Put(&Vector{Values: make([]float64, 5)})
	assert.Equal(t, int64(0), vp.InUse())
}
