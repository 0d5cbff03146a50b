package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/mercura/model"
)

func sampleResponse(id string) model.CommandResponse {
	return model.CommandResponse{
		Success: true,
		Message: "created",
		Result:  model.Record{"id": id},
	}
}

func TestMemoryIdempotencyStore_roundTrip(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("product-create", "abc")

	if _, found, err := store.Check(ctx, key, "hash-1"); err != nil || found {
		t.Fatalf("Check() on empty store = found %v, err %v", found, err)
	}

	if err := store.Store(ctx, key, "hash-1", sampleResponse("p1"), time.Hour); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	resp, found, err := store.Check(ctx, key, "hash-1")
	if err != nil || !found {
		t.Fatalf("Check() = found %v, err %v", found, err)
	}
	if resp.Result.String("id") != "p1" {
		t.Errorf("replayed id = %q", resp.Result.String("id"))
	}
}

func TestMemoryIdempotencyStore_hashMismatch(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("product-create", "abc")

	if err := store.Store(ctx, key, "hash-1", sampleResponse("p1"), time.Hour); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	_, _, err := store.Check(ctx, key, "hash-2")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrConflict {
		t.Fatalf("Check() with different hash = %v, want CONFLICT", err)
	}
}

func TestMemoryIdempotencyStore_expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("product-create", "abc")

	if err := store.Store(ctx, key, "hash-1", sampleResponse("p1"), time.Millisecond); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, found, err := store.Check(ctx, key, "hash-1"); err != nil || found {
		t.Errorf("Check() after expiry = found %v, err %v", found, err)
	}
}

func TestRedisIdempotencyStore_roundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()
	key := FormatIdempotencyKey("order-create", "xyz")

	if _, found, err := store.Check(ctx, key, "hash-1"); err != nil || found {
		t.Fatalf("Check() on empty store = found %v, err %v", found, err)
	}

	if err := store.Store(ctx, key, "hash-1", sampleResponse("o1"), time.Hour); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	resp, found, err := store.Check(ctx, key, "hash-1")
	if err != nil || !found {
		t.Fatalf("Check() = found %v, err %v", found, err)
	}
	if resp.Result.String("id") != "o1" {
		t.Errorf("replayed id = %q", resp.Result.String("id"))
	}

	_, _, err = store.Check(ctx, key, "hash-other")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrConflict {
		t.Fatalf("Check() with different hash = %v, want CONFLICT", err)
	}
}

func TestRedisIdempotencyStore_expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()
	key := FormatIdempotencyKey("order-create", "xyz")

	if err := store.Store(ctx, key, "hash-1", sampleResponse("o1"), time.Minute); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, found, err := store.Check(ctx, key, "hash-1"); err != nil || found {
		t.Errorf("Check() after expiry = found %v, err %v", found, err)
	}
}
