package ingestsource

import (
	"context"
	"testing"
	"time"
)

func TestStdinSourceName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStdinSource(ctx)
	if s.Name() != "stdin" {
		t.Fatalf("Name() = %q", s.Name())
	}
	cancel()
	s.Stop()
	select {
	case _, ok := <-s.Lines():
		if ok {
			t.Fatal("expected channel to close after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
