package keymutex

import (
	"sync"
	"testing"
)

func TestSerializesPerKey(t *testing.T) {
	km := New()

	// One counter per key; each is only ever touched under its key's lock,
	// so a lost increment means the lock failed to serialize.
	counters := [2]int{}
	keys := []string{"a", "b"}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		for k := range keys {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				km.Lock(keys[k])
				defer km.Unlock(keys[k])
				counters[k]++
			}(k)
		}
	}
	wg.Wait()

	if counters[0] != 100 || counters[1] != 100 {
		t.Fatalf("counters = %v, want 100 each", counters)
	}
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	km.Lock("held")
	defer km.Unlock("held")

	done := make(chan struct{})
	go func() {
		km.Lock("other")
		km.Unlock("other")
		close(done)
	}()
	<-done
}
