package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fastHash = Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("stores normalised users with a verifiable hash", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		svc := NewUserService(repo, fastHash, func() time.Time { return now }, nil)

		user, err := svc.Register(context.Background(), RegisterParams{
			Email:       "  Alice@Example.com ",
			DisplayName: " Alice ",
			Password:    "long enough",
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		want := User{ID: 1, Email: "alice@example.com", DisplayName: "Alice", CreatedAt: now, UpdatedAt: now}
		if diff := cmp.Diff(want, user); diff != "" {
			t.Fatalf("unexpected user (-want +got):\n%s", diff)
		}
		if err := VerifyPassword(repo.hashes[1], "long enough"); err != nil {
			t.Fatalf("stored hash does not verify: %v", err)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), fastHash, nil, nil)
		_, err := svc.Register(context.Background(), RegisterParams{Email: "not-an-email", Password: "short"})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("expected %s to be reported, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("surfaces duplicate emails", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), fastHash, nil, nil)
		params := RegisterParams{Email: "bob@example.com", DisplayName: "Bob", Password: "long enough"}
		if _, err := svc.Register(context.Background(), params); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		if _, err := svc.Register(context.Background(), params); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_AdminOperations(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub()
	svc := NewUserService(repo, fastHash, nil, nil)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := svc.Register(ctx, RegisterParams{Email: email, DisplayName: email, Password: "long enough"}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	admin := Principal{UserID: 99, IsAdmin: true}
	member := Principal{UserID: 1}

	if _, err := svc.ListUsers(ctx, member); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin list, got %v", err)
	}
	users, err := svc.ListUsers(ctx, admin)
	if err != nil || len(users) != 2 {
		t.Fatalf("expected two users, got %v (%v)", users, err)
	}

	if _, err := svc.GetUser(ctx, member, 1); err != nil {
		t.Fatalf("expected users to read themselves, got %v", err)
	}
	if _, err := svc.GetUser(ctx, member, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized reading another user, got %v", err)
	}

	if err := svc.DeleteUser(ctx, member, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin delete, got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, 2); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
