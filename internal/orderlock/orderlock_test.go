package orderlock

import (
	"sync"
	"testing"
)

func TestSerializesPerOrder(t *testing.T) {
	table := NewTable()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = table.Do(42, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected 100 serialized increments, got %d", counter)
	}
}

func TestDifferentOrdersDoNotBlock(t *testing.T) {
	table := NewTable()
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = table.Do(1, func() error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	// Order 2 must proceed while order 1 is held.
	done := make(chan struct{})
	go func() {
		_ = table.Do(2, func() error { return nil })
		close(done)
	}()
	<-done
	close(release)
}

func TestIdleLocksAreDropped(t *testing.T) {
	table := NewTable()
	_ = table.Do(7, func() error { return nil })

	table.mu.Lock()
	defer table.mu.Unlock()
	if len(table.locks) != 0 {
		t.Fatalf("expected empty lock table, got %d entries", len(table.locks))
	}
}
