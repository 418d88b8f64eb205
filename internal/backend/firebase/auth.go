package firebase

import (
	"context"
	"fmt"

	"kidoku/internal/backend"
	"kidoku/internal/models"

	"google.golang.org/api/identitytoolkit/v3"
)

var _ backend.Auth = (*Auth)(nil)

// Auth signs one session in with email and password through the
// Identity Toolkit API behind Firebase Auth.
type Auth struct {
	backend.AuthState
	identity *identitytoolkit.Service
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (models.Account, error) {
	resp, err := a.identity.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return models.Account{}, fmt.Errorf("sign in: %w", err)
	}

	account := models.Account{ID: resp.LocalId, Email: resp.Email}
	a.SetCurrent(&account)
	return account, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (models.Account, error) {
	resp, err := a.identity.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return models.Account{}, fmt.Errorf("sign up: %w", err)
	}

	account := models.Account{ID: resp.LocalId, Email: resp.Email}
	a.SetCurrent(&account)
	return account, nil
}

// SignOut only forgets the account locally; ID tokens simply expire.
func (a *Auth) SignOut(ctx context.Context) error {
	a.SetCurrent(nil)
	return nil
}
