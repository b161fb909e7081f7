package locks

import (
	"sync"
	"testing"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Lock("order-1")
			defer k.Unlock("order-1")
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestKeyed_DistinctKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()
	k.Lock("order-a")
	defer k.Unlock("order-a")

	done := make(chan struct{})
	go func() {
		k.Lock("order-b")
		k.Unlock("order-b")
		close(done)
	}()

	<-done
}

func TestKeyed_ReleasesEntries(t *testing.T) {
	k := NewKeyed()
	k.Lock("order-x")
	k.Unlock("order-x")

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.entries) != 0 {
		t.Fatalf("expected entries map drained, got %d entries", len(k.entries))
	}
}
