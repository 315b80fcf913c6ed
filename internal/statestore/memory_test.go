package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/statestore"
)

func TestMemory_PutGet(t *testing.T) {
	s := statestore.NewMemory(time.Minute)
	defer s.Close()
	ctx := context.Background()

	want := &domain.AuthState{
		User:            &domain.User{ID: "usr-1", Email: "owner@acme.test"},
		IsAuthenticated: true,
	}
	if err := s.Put(ctx, "state-1", want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "state-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.User == nil || got.User.ID != "usr-1" || !got.IsAuthenticated {
		t.Errorf("unexpected state: %+v", got)
	}
}

func TestMemory_GetUnknownKey(t *testing.T) {
	s := statestore.NewMemory(time.Minute)
	defer s.Close()

	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown key, got %+v", got)
	}
}

func TestMemory_Delete(t *testing.T) {
	s := statestore.NewMemory(time.Minute)
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, "state-1", &domain.AuthState{IsAuthenticated: true})
	if err := s.Delete(ctx, "state-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, _ := s.Get(ctx, "state-1")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestMemory_Expiry(t *testing.T) {
	s := statestore.NewMemory(50 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, "state-1", &domain.AuthState{IsAuthenticated: true})
	time.Sleep(100 * time.Millisecond)

	got, _ := s.Get(ctx, "state-1")
	if got != nil {
		t.Errorf("expected entry to expire, got %+v", got)
	}
}
