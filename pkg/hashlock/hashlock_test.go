package hashlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMap_SerializesSameHash(t *testing.T) {
	m := New()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.Lock("same-hash")
			defer release()

			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}

	wg.Wait()
	assert.EqualValues(t, 1, maxActive, "goroutines sharing a hash must never run the critical section concurrently")
}

func TestMap_DoesNotSerializeDifferentHashes(t *testing.T) {
	m := New()
	start := make(chan struct{})
	var wg sync.WaitGroup
	var held int32
	results := make([]bool, 2)

	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.Lock(string(rune('a' + i)))
			defer release()
			atomic.AddInt32(&held, 1)
			<-start
			results[i] = true
			time.Sleep(10 * time.Millisecond)
		}()
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&held) == 2 }, time.Second, time.Millisecond,
		"locks on different hashes must be held at the same time")
	close(start)
	wg.Wait()

	assert.True(t, results[0])
	assert.True(t, results[1])
}

func TestMap_ReclaimsEntryWhenUncontended(t *testing.T) {
	m := New()
	release := m.Lock("h")
	assert.Equal(t, 1, m.Len())
	release()
	assert.Equal(t, 0, m.Len(), "entry should be reclaimed once the last waiter releases")
}

func TestMap_ReleaseIsIdempotent(t *testing.T) {
	m := New()
	release := m.Lock("h")
	release()
	assert.NotPanics(t, func() { release() })
}
