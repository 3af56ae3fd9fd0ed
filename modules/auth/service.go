package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"time"

	"github.com/go-monolith/mono"
	"github.com/google/uuid"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
	"github.com/KuwadaKouhei/todo-app/events"
)

var (
	// ErrInvalidCredentials is returned when sign-in credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when the password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrNotSignedIn is returned when sign-out is attempted with no session.
	ErrNotSignedIn = errors.New("no identity is signed in")
)

// AuthService is the authentication provider behind the identity session.
// Sign-in and sign-out are the only operations that move the session's
// current identity.
type AuthService struct {
	repo    *userRepository
	hasher  *passwordHasher
	jwt     *JWTManager
	session *Session
	bus     mono.EventBus
}

func newAuthService(repo *userRepository, hasher *passwordHasher, jwt *JWTManager, session *Session) *AuthService {
	return &AuthService{
		repo:    repo,
		hasher:  hasher,
		jwt:     jwt,
		session: session,
	}
}

func (s *AuthService) setEventBus(bus mono.EventBus) {
	s.bus = bus
}

// Register creates a new user account. It does not sign the user in.
func (s *AuthService) Register(_ context.Context, email, password, displayName string) (*domain.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	taken, err := s.repo.emailTaken(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if taken {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if displayName == "" {
		displayName = email
	}
	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.create(user); err != nil {
		return nil, err
	}

	return user, nil
}

// SignIn authenticates a user, makes it the session's current identity,
// and returns tokens. Subscribers on the identity change stream are
// notified before SignIn returns.
func (s *AuthService) SignIn(_ context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.repo.byEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.matches(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.session.set(user.Identity())

	if s.bus != nil {
		event := events.UserSignedInEvent{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			SignedInAt:  time.Now(),
		}
		if err := events.UserSignedInV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[auth] Warning: failed to publish UserSignedIn event for user %s: %v", user.ID, err)
		}
	}

	return tokens, nil
}

// SignOut clears the session's current identity and notifies subscribers.
func (s *AuthService) SignOut(_ context.Context) error {
	current := s.session.Current()
	if current == nil {
		return ErrNotSignedIn
	}

	s.session.set(nil)

	if s.bus != nil {
		event := events.UserSignedOutEvent{
			UserID:      current.ID,
			SignedOutAt: time.Now(),
		}
		if err := events.UserSignedOutV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[auth] Warning: failed to publish UserSignedOut event for user %s: %v", current.ID, err)
		}
	}
	return nil
}

// ValidateToken validates an access token and returns its claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// RefreshTokens exchanges a valid refresh token for a new token pair.
func (s *AuthService) RefreshTokens(_ context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := s.repo.byID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return s.generateTokenPair(user.ID, user.Email)
}

func (s *AuthService) generateTokenPair(userID, email string) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}
