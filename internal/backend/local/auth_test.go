package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"kidoku/internal/models"
)

func TestAuth(t *testing.T) {
	const t0Unix = 1700000000

	createAuth := func(t *testing.T) (*Backend, *Auth, *time.Time) {
		b := newTestBackend(t)
		currentTime := time.Unix(t0Unix, 0)
		b.accounts.now = func() time.Time {
			return currentTime
		}
		return b, b.accounts.NewAuth(), &currentTime
	}

	t.Run("SignUp", func(t *testing.T) {
		_, auth, _ := createAuth(t)

		acc, err := auth.SignUp(context.Background(), " Alice@Example.com ", "secret1")
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if acc.Email != "alice@example.com" {
			t.Errorf("expected normalized email, got %s", acc.Email)
		}
		if cur := auth.Current(); cur == nil || cur.ID != acc.ID {
			t.Errorf("expected current account %s, got %v", acc.ID, cur)
		}

		other := auth.accounts.NewAuth()
		if _, err := other.SignUp(context.Background(), "alice@example.com", "secret2"); !errors.Is(err, ErrAccountExists) {
			t.Errorf("expected ErrAccountExists, got %v", err)
		}
		if _, err := other.SignUp(context.Background(), "bob@example.com", "123"); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("SignIn", func(t *testing.T) {
		_, auth, _ := createAuth(t)
		acc, err := auth.SignUp(context.Background(), "alice@example.com", "secret1")
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		_ = auth.SignOut(context.Background())
		if auth.Current() != nil {
			t.Fatal("expected signed out")
		}

		if _, err := auth.SignIn(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		got, err := auth.SignIn(context.Background(), "alice@example.com", "secret1")
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if got.ID != acc.ID {
			t.Errorf("expected %s, got %s", acc.ID, got.ID)
		}
	})

	t.Run("Throttle", func(t *testing.T) {
		_, auth, now := createAuth(t)
		if _, err := auth.SignUp(context.Background(), "alice@example.com", "secret1"); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		for i := 0; i < 4; i++ {
			_, _ = auth.SignIn(context.Background(), "alice@example.com", "wrong")
		}

		if _, err := auth.SignIn(context.Background(), "alice@example.com", "secret1"); !errors.Is(err, ErrTooManyAttempts) {
			t.Fatalf("expected ErrTooManyAttempts, got %v", err)
		}

		*now = now.Add(10 * time.Minute)
		if _, err := auth.SignIn(context.Background(), "alice@example.com", "secret1"); err != nil {
			t.Errorf("expected sign-in after backoff, got %v", err)
		}
	})

	t.Run("Persisted", func(t *testing.T) {
		b, auth, _ := createAuth(t)
		if _, err := auth.SignUp(context.Background(), "alice@example.com", "secret1"); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}

		reloaded, err := NewAccounts(b.storage)
		if err != nil {
			t.Fatalf("NewAccounts failed: %v", err)
		}
		if _, err := reloaded.NewAuth().SignIn(context.Background(), "alice@example.com", "secret1"); err != nil {
			t.Errorf("SignIn against reloaded registry failed: %v", err)
		}
	})

	t.Run("OnAuthChange", func(t *testing.T) {
		_, auth, _ := createAuth(t)
		var seen []*models.Account
		unsubscribe := auth.OnAuthChange(func(a *models.Account) {
			seen = append(seen, a)
		})

		if _, err := auth.SignUp(context.Background(), "alice@example.com", "secret1"); err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		_ = auth.SignOut(context.Background())
		unsubscribe()
		_, _ = auth.SignIn(context.Background(), "alice@example.com", "secret1")

		if len(seen) != 3 {
			t.Fatalf("expected 3 notifications, got %d", len(seen))
		}
		if seen[0] != nil || seen[1] == nil || seen[2] != nil {
			t.Errorf("unexpected sequence %v", seen)
		}
	})
}
