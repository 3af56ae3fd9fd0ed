package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
)

// AuthPort is the interface other modules use to reach the auth module.
type AuthPort interface {
	Register(ctx context.Context, email, password, displayName string) (*RegisterResponse, error)
	SignIn(ctx context.Context, email, password string) (*SignInResponse, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
}

// AuthAdapter implements AuthPort over the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Register creates a new user account via the register service.
func (a *AuthAdapter) Register(ctx context.Context, email, password, displayName string) (*RegisterResponse, error) {
	req := RegisterRequest{Email: email, Password: password, DisplayName: displayName}
	var resp RegisterResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "register", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp, nil
}

// SignIn authenticates a user via the sign-in service.
func (a *AuthAdapter) SignIn(ctx context.Context, email, password string) (*SignInResponse, error) {
	req := SignInRequest{Email: email, Password: password}
	var resp SignInResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "sign-in", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp, nil
}

// SignOut clears the identity session via the sign-out service.
func (a *AuthAdapter) SignOut(ctx context.Context) error {
	req := SignOutRequest{}
	var resp SignOutResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "sign-out", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return mapServiceError(err)
	}
	if !resp.SignedOut {
		return fmt.Errorf("sign-out was rejected")
	}
	return nil
}

// Refresh exchanges a refresh token for a new token pair.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp RefreshResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "refresh-token", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp, nil
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "validate-token", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("validate-token request failed: %w", err)
	}
	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %s", resp.Error)
	}
	return &domain.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// mapServiceError maps errors that crossed the service boundary as text back
// to the package's sentinel errors so callers can use errors.Is.
func mapServiceError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, ErrInvalidCredentials.Error()):
		return ErrInvalidCredentials
	case strings.Contains(msg, ErrUserExists.Error()):
		return ErrUserExists
	case strings.Contains(msg, ErrInvalidEmail.Error()):
		return ErrInvalidEmail
	case strings.Contains(msg, ErrWeakPassword.Error()):
		return ErrWeakPassword
	case strings.Contains(msg, ErrPasswordTooLong.Error()):
		return ErrPasswordTooLong
	case strings.Contains(msg, ErrNotSignedIn.Error()):
		return ErrNotSignedIn
	case strings.Contains(msg, "invalid refresh token"):
		return ErrInvalidToken
	}
	return fmt.Errorf("auth service call failed: %w", err)
}
