package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTier_SetGetDel(t *testing.T) {
	tier := NewMemoryTier()
	ctx := context.Background()

	if err := tier.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val, hit, err := tier.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatal("expected hit")
	}
	if string(val) != "v" {
		t.Errorf("expected %q, got %q", "v", string(val))
	}

	if err := tier.Del(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, hit, _ := tier.Get(ctx, "k"); hit {
		t.Error("expected miss after delete")
	}
}

func TestMemoryTier_MissIsNotError(t *testing.T) {
	tier := NewMemoryTier()
	_, hit, err := tier.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("miss should not be an error: %v", err)
	}
	if hit {
		t.Error("expected miss")
	}
}

func TestMemoryTier_TTLExpiry(t *testing.T) {
	tier := NewMemoryTier()
	ctx := context.Background()

	if err := tier.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, hit, err := tier.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("expected entry to expire")
	}
}
