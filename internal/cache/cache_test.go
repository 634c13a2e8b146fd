package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type holonView struct {
	ID     string
	Status string
}

func TestReadThroughLoadsOnceThenHitsCache(t *testing.T) {
	store := newFakeStore()
	rt := NewReadThrough[holonView](store, time.Minute)

	var loads int
	loader := func(ctx context.Context) (holonView, error) {
		loads++
		return holonView{ID: "hol_1", Status: "active"}, nil
	}

	first, err := rt.Get(context.Background(), "hol_1", loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := rt.Get(context.Background(), "hol_1", loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if loads != 1 {
		t.Errorf("expected loader to run exactly once, ran %d times", loads)
	}
	if first != second {
		t.Errorf("expected cached value to match loaded value, got %+v vs %+v", first, second)
	}
}

func TestReadThroughPropagatesLoaderError(t *testing.T) {
	store := newFakeStore()
	rt := NewReadThrough[holonView](store, time.Minute)
	wantErr := errors.New("holon not found")

	_, err := rt.Get(context.Background(), "hol_missing", func(ctx context.Context) (holonView, error) {
		return holonView{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error to propagate, got %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), "hol_missing"); ok {
		t.Error("expected nothing to be cached after a loader error")
	}
}

func TestReadThroughInvalidateForcesReload(t *testing.T) {
	store := newFakeStore()
	rt := NewReadThrough[holonView](store, time.Minute)

	var loads int
	loader := func(ctx context.Context) (holonView, error) {
		loads++
		return holonView{ID: "hol_1", Status: "active"}, nil
	}

	rt.Get(context.Background(), "hol_1", loader)
	if err := rt.Invalidate(context.Background(), "hol_1"); err != nil {
		t.Fatalf("unexpected invalidate error: %v", err)
	}
	rt.Get(context.Background(), "hol_1", loader)

	if loads != 2 {
		t.Errorf("expected loader to run again after invalidate, ran %d times", loads)
	}
}
