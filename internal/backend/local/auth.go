package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kidoku/internal/backend"
	"kidoku/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many failed sign-in attempts")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const minPasswordLength = 6

type credentials struct {
	Account      models.Account
	PasswordHash string
	// Consecutive failed sign-in attempts, used to throttle brute force.
	FailedAttempts  int64
	LastAttemptTime int64
}

func (c *credentials) resetFailedAttempts(now time.Time) {
	c.FailedAttempts = 0
	c.LastAttemptTime = now.Unix()
}

func (c *credentials) incrementFailedAttempts(now time.Time) {
	c.FailedAttempts++
	c.LastAttemptTime = now.Unix()
}

// Accounts is the password account registry shared by all sessions.
type Accounts struct {
	storage *BboltStorage
	users   *geche.Locker[string, *credentials]
	now     func() time.Time
}

func NewAccounts(storage *BboltStorage) (*Accounts, error) {
	a := &Accounts{
		storage: storage,
		users:   geche.NewLocker[string, *credentials](geche.NewMapCache[string, *credentials]()),
		now:     time.Now,
	}

	stored, err := storage.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	tx := a.users.Lock()
	defer tx.Unlock()
	for _, acc := range stored {
		tx.Set(acc.Email, &credentials{
			Account:      models.Account{ID: acc.ID, Email: acc.Email},
			PasswordHash: acc.PasswordHash,
		})
	}

	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Accounts) signUp(email, password string) (models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return models.Account{}, ErrInvalidCredentials
	}
	if len(password) < minPasswordLength {
		return models.Account{}, ErrWeakPassword
	}

	tx := a.users.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(email); err == nil {
		return models.Account{}, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{ID: uuid.NewString(), Email: email}
	if err := a.storage.InsertAccount(DBAccount{
		ID:           account.ID,
		Email:        account.Email,
		PasswordHash: string(hash),
	}); err != nil {
		return models.Account{}, err
	}

	tx.Set(email, &credentials{Account: account, PasswordHash: string(hash)})
	return account, nil
}

func (a *Accounts) signIn(email, password string) (models.Account, error) {
	now := a.now()
	email = normalizeEmail(email)

	tx := a.users.Lock()
	defer tx.Unlock()
	user, err := tx.Get(email)
	if err != nil {
		return models.Account{}, ErrInvalidCredentials
	}

	if user.FailedAttempts > 3 {
		nextAttempt := user.LastAttemptTime + 30*(user.FailedAttempts*user.FailedAttempts)
		if now.Unix() < nextAttempt {
			return models.Account{}, fmt.Errorf("%w: next attempt in %d seconds", ErrTooManyAttempts, nextAttempt-now.Unix())
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		user.incrementFailedAttempts(now)
		return models.Account{}, ErrInvalidCredentials
	}

	user.resetFailedAttempts(now)
	return user.Account, nil
}

// Auth is the auth state of one session against the local registry.
type Auth struct {
	backend.AuthState
	accounts *Accounts
}

func (a *Accounts) NewAuth() *Auth {
	return &Auth{accounts: a}
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (models.Account, error) {
	account, err := a.accounts.signIn(email, password)
	if err != nil {
		return models.Account{}, err
	}
	slog.Debug("signed in", "account_id", account.ID)
	a.SetCurrent(&account)
	return account, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (models.Account, error) {
	account, err := a.accounts.signUp(email, password)
	if err != nil {
		return models.Account{}, err
	}
	slog.Info("account created", "account_id", account.ID)
	a.SetCurrent(&account)
	return account, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.SetCurrent(nil)
	return nil
}
