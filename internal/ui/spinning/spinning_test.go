package spinning

import (
	"context"
	"testing"
	"time"
)

func TestSpinningDone(t *testing.T) {
	Theme = ThemeAscii
	s := New(context.Background())
	time.Sleep(10 * time.Millisecond)
	s.Done()
	// Done is idempotent.
	s.Done()
}

func TestSpinningStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx)
	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spinner goroutine did not stop after context cancellation")
	}
}
