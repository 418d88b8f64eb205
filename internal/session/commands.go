package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kidoku/internal/content"
	"kidoku/internal/models"
)

// Login signs in with the given credentials and, if that fails, tries to
// create the account instead.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)

	_, signInErr := s.auth.SignIn(ctx, email, password)
	if signInErr == nil {
		return nil
	}
	slog.Debug("sign in failed, trying sign up", "error", signInErr)

	_, signUpErr := s.auth.SignUp(ctx, email, password)
	if signUpErr == nil {
		return nil
	}

	slog.Warn("login failed", "sign_in_error", signInErr, "sign_up_error", signUpErr)
	return fmt.Errorf("%w: %w", ErrAuthFailure, errors.Join(signInErr, signUpErr))
}

func (s *Session) Logout(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SaveNickname writes the own profile. The session moves to ready once
// the loop picks the new profile up.
func (s *Session) SaveNickname(ctx context.Context, nickname string) error {
	nickname, err := content.NormalizeNickname(nickname)
	if err != nil {
		return err
	}

	account, _ := s.identity()
	if account == nil {
		return ErrNotSignedIn
	}

	profile := models.Profile{
		AccountID: account.ID,
		Email:     account.Email,
		Nickname:  nickname,
	}
	if err := s.profiles.PutProfile(ctx, profile); err != nil {
		slog.Error("saving profile", "account_id", account.ID, "error", err)
		return fmt.Errorf("save profile: %w", err)
	}

	// The store assigns the creation time.
	stored, err := s.profiles.GetProfile(ctx, account.ID)
	if err != nil {
		slog.Warn("reloading saved profile", "account_id", account.ID, "error", err)
		stored = profile
	}

	s.post(profileEvent{profile: stored})
	return nil
}

// Send posts text as a new message. Only one send may be in flight at a
// time; a concurrent call returns ErrSendInFlight.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	if !s.sending.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer s.sending.Store(false)

	account, profile := s.identity()
	if account == nil {
		return ErrNotSignedIn
	}
	if profile == nil {
		return ErrNoProfile
	}

	message := models.Message{
		Text:           text,
		AuthorID:       account.ID,
		AuthorEmail:    account.Email,
		AuthorNickname: profile.Nickname,
		ReadBy:         []string{account.ID},
	}
	id, err := s.messages.CreateMessage(ctx, message)
	if err != nil {
		slog.Error("sending message", "account_id", account.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrSendFailure, err)
	}

	slog.Debug("message sent", "message_id", id)
	return nil
}
