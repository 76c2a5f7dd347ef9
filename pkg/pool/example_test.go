package pool_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/packscan/pkg/pool"
)

// Example shows the buffer pool picking a bucket for a request.
func Example() {
	bufs := pool.NewBufferPool()

	buf := bufs.Get(5000)
	fmt.Println(len(buf), cap(buf))
	bufs.Put(buf)

	// Output:
	// 5000 16384
}

func TestPoolReset(t *testing.T) {
	type counter struct{ n int }
	p := pool.New(
		func() *counter { return &counter{} },
		func(c *counter) { c.n = 0 },
	)

	c := p.Get()
	c.n = 5
	allocated, inUse, _ := p.Stats()
	assert.Equal(t, int64(1), allocated)
	assert.Equal(t, int64(1), inUse)

	p.Put(c)
	assert.Zero(t, c.n)
	_, inUse, _ = p.Stats()
	assert.Zero(t, inUse)
}

func TestBufferPoolOversized(t *testing.T) {
	bufs := pool.NewBufferPoolWithSizes([]int{8, 16})

	big := bufs.Get(100)
	assert.Len(t, big, 100)
	bufs.Put(big)

	small := bufs.Get(3)
	assert.Equal(t, 8, cap(small))
	bufs.Put(small)

	allocated, inUse, _ := bufs.Stats()
	assert.Equal(t, int64(1), allocated)
	assert.Zero(t, inUse)
}
