package blobstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestRedis connects to OCRANNOTATE_TEST_REDIS or skips.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("OCRANNOTATE_TEST_REDIS")
	if addr == "" {
		t.Skip("OCRANNOTATE_TEST_REDIS not set")
	}

	s := NewRedis(RedisConfig{
		Addr:   addr,
		Prefix: "ocr-annotate-test:" + uuid.NewString() + ":",
		TTL:    time.Minute,
	})
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	return s
}

func TestRedis_PutGet(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	if err := s.Put(ctx, "sample.png", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, "sample.png")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "\x89PNG" {
		t.Errorf("Get: got %q", got)
	}
}

func TestRedis_GetMissing(t *testing.T) {
	s := newTestRedis(t)

	if _, err := s.Get(context.Background(), "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedis_InvalidKey(t *testing.T) {
	// Key validation happens before any network call.
	s := NewRedis(RedisConfig{Addr: "127.0.0.1:0"})
	defer s.Close()

	if err := s.Put(context.Background(), "../x", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := s.Get(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}
