package fifo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overrun = 0x04

func TestRing_FillAndDrain(t *testing.T) {
	var r Ring
	for i := 0; i < Size; i++ {
		require.True(t, r.Put(MakeEntry(byte(i), 0)))
	}
	assert.True(t, r.Full())
	assert.False(t, r.PutOrMark(MakeEntry(0xFF, 0), overrun), "full ring must refuse")

	for i := 0; i < Size-1; i++ {
		e, ok := r.Get()
		require.True(t, ok)
		assert.EqualValues(t, i, e.Data())
		assert.Zero(t, e.Status())
	}
	e, ok := r.Get()
	require.True(t, ok)
	assert.EqualValues(t, Size-1, e.Data())
	assert.EqualValues(t, overrun, e.Status())

	_, ok = r.Get()
	assert.False(t, ok)
}

func TestRing_Wraps(t *testing.T) {
	var r Ring
	for i := 0; i < 300; i++ {
		require.True(t, r.Put(MakeEntry(byte(i), 0)))
		e, ok := r.Get()
		require.True(t, ok)
		require.Equal(t, byte(i), e.Data())
	}
	r.Put(1)
	r.Clear()
	assert.Zero(t, r.Used())
}

func TestRing_MarkNewestOnEmptyIsNoop(t *testing.T) {
	var r Ring
	r.MarkNewest(overrun)
	assert.Zero(t, r.Used())
}

func TestRing_ProducerConsumer(t *testing.T) {
	var r Ring
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Put(MakeEntry(byte(i), 0)) {
				i++
			}
		}
	}()
	for i := 0; i < n; {
		e, ok := r.Get()
		if !ok {
			continue
		}
		require.Equal(t, byte(i), e.Data())
		i++
	}
	wg.Wait()
}
