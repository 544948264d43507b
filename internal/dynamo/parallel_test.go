package dynamo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForEach_FillsEverySlot(t *testing.T) {
	out := make([]int, 100)
	err := ForEach(context.Background(), len(out), 4, func(ctx context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("slot %d = %d", i, v)
		}
	}
}

func TestForEach_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	err := ForEach(context.Background(), 1000, 2, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestForEach_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ForEach(ctx, 10, 2, func(ctx context.Context, i int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestForEach_Empty(t *testing.T) {
	if err := ForEach(context.Background(), 0, 0, nil); err != nil {
		t.Fatal(err)
	}
}
