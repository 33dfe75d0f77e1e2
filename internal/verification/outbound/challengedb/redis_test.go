package challengedb

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/verification/entity"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return NewRedis(client, instrument.NewNoop()), server
}

func TestRedis_PutAndGet(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	// Sub-second precision must survive the round trip so the stored
	// expiry matches what the issuance caller was told.
	expiresAt := time.Now().Add(10*time.Minute + 123456789*time.Nanosecond)
	ch := entity.Challenge{
		Email:     "alice@example.com",
		CodeHash:  "abcdef0123456789",
		ExpiresAt: expiresAt,
	}

	if err := store.PutChallenge(ctx, ch, 10*time.Minute); err != nil {
		t.Fatalf("PutChallenge returned error: %v", err)
	}

	got, err := store.GetChallenge(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetChallenge returned error: %v", err)
	}
	if got.CodeHash != ch.CodeHash {
		t.Fatalf("expected code hash %q, got %q", ch.CodeHash, got.CodeHash)
	}
	if !got.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expiry %v, got %v", expiresAt, got.ExpiresAt)
	}

	remaining := server.TTL("challenge:alice@example.com")
	if remaining <= 0 || remaining > 10*time.Minute {
		t.Fatalf("expected key ttl within (0, 10m], got %v", remaining)
	}
}

func TestRedis_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetChallenge(context.Background(), "ghost@example.com")
	if !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedis_PutReplacesOutstanding(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := entity.Challenge{
		Email:     "bob@example.com",
		CodeHash:  "old-hash",
		ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Second),
	}
	if err := store.PutChallenge(ctx, first, time.Minute); err != nil {
		t.Fatalf("PutChallenge returned error: %v", err)
	}

	second := first
	second.CodeHash = "new-hash"
	second.ExpiresAt = time.Now().Add(10 * time.Minute).Truncate(time.Second)
	if err := store.PutChallenge(ctx, second, 10*time.Minute); err != nil {
		t.Fatalf("PutChallenge returned error: %v", err)
	}

	got, err := store.GetChallenge(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetChallenge returned error: %v", err)
	}
	if got.CodeHash != "new-hash" {
		t.Fatalf("expected replacement hash, got %q", got.CodeHash)
	}
}

func TestRedis_DeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ch := entity.Challenge{
		Email:     "carol@example.com",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := store.PutChallenge(ctx, ch, time.Minute); err != nil {
		t.Fatalf("PutChallenge returned error: %v", err)
	}

	if err := store.DeleteChallenge(ctx, "carol@example.com"); err != nil {
		t.Fatalf("DeleteChallenge returned error: %v", err)
	}
	if err := store.DeleteChallenge(ctx, "carol@example.com"); err != nil {
		t.Fatalf("expected deleting a missing challenge to succeed, got %v", err)
	}

	if _, err := store.GetChallenge(ctx, "carol@example.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
