package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"kidoku/internal/backend/local"
	"kidoku/internal/config"
	"kidoku/internal/content"
	"kidoku/internal/models"
)

// AddUser creates an account with a random password in the local
// backend and, when nickname is set, its profile. The server must not be
// running, it holds the database lock.
func AddUser(ctx context.Context, email, nickname string, cfg *config.Config) error {
	if cfg.Backend != config.BackendLocal {
		return fmt.Errorf("add-user works with the local backend only, got %q", cfg.Backend)
	}

	if nickname != "" {
		var err error
		if nickname, err = content.NormalizeNickname(nickname); err != nil {
			return err
		}
	}

	b, err := local.New(cfg.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w. Is the server running?", cfg.DBFile, err)
	}
	defer func() { _ = b.Close() }()

	account, password, err := createUser(ctx, b, email, nickname)
	if err != nil {
		return err
	}

	fmt.Printf("\nUser Created Successfully!\n")
	fmt.Printf("Email:    %s\n", account.Email)
	fmt.Printf("Password: %s\n", password)
	if nickname != "" {
		fmt.Printf("Nickname: %s\n", nickname)
	}
	fmt.Println("\nPlease share these credentials with the user.")
	return nil
}

func createUser(ctx context.Context, b *local.Backend, email, nickname string) (models.Account, string, error) {
	password, err := randomPassword()
	if err != nil {
		return models.Account{}, "", err
	}

	account, err := b.NewAuth().SignUp(ctx, email, password)
	if errors.Is(err, local.ErrAccountExists) {
		return models.Account{}, "", fmt.Errorf("account %s already exists", email)
	}
	if err != nil {
		return models.Account{}, "", fmt.Errorf("failed to add user: %w", err)
	}

	if nickname != "" {
		if err := b.PutProfile(ctx, models.Profile{
			AccountID: account.ID,
			Email:     account.Email,
			Nickname:  nickname,
		}); err != nil {
			return models.Account{}, "", fmt.Errorf("failed to save profile: %w", err)
		}
	}
	return account, password, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
