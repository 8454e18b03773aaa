package fulfillment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("task-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	// Entries are reclaimed once released.
	km.mu.Lock()
	assert.Empty(t, km.locks)
	km.mu.Unlock()
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlock1 := km.lock("task-1")
	defer unlock1()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		unlock2 := km.lock("task-2")
		unlock2()
		close(done)
	}()
	<-done
}
