package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
	"github.com/KuwadaKouhei/todo-app/events"
)

// AuthModule provides the authentication provider and the process-wide
// identity session.
type AuthModule struct {
	db       *gorm.DB
	service  *AuthService
	session  *Session
	dbPath   string
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.EventEmitterModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule. TODO_AUTH_DB_PATH overrides the user
// database location.
func NewModule() *AuthModule {
	dbPath := os.Getenv("TODO_AUTH_DB_PATH")
	if dbPath == "" {
		dbPath = "users.db"
	}
	return &AuthModule{
		dbPath:  dbPath,
		session: NewSession(),
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// SetEventBus receives the application event bus.
func (m *AuthModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *AuthModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserSignedInV1.ToBase(),
		events.UserSignedOutV1.ToBase(),
	}
}

// Start opens the user database and completes the session's first identity
// determination (no persisted session, so the process starts signed out).
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := newUserRepository(db)
	hasher := newPasswordHasher()
	jwtManager := NewJWTManager(loadJWTConfig())

	m.service = newAuthService(repo, hasher, jwtManager, m.session)
	if m.eventBus != nil {
		m.service.setEventBus(m.eventBus)
	}

	// First determination: sessions are not persisted across restarts.
	m.session.set(nil)

	log.Printf("[auth] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database":  m.dbPath,
			"signed_in": m.session.Current() != nil,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "sign-in", json.Unmarshal, json.Marshal, m.handleSignIn,
	); err != nil {
		return fmt.Errorf("failed to register sign-in service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "sign-out", json.Unmarshal, json.Marshal, m.handleSignOut,
	); err != nil {
		return fmt.Errorf("failed to register sign-out service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "refresh-token", json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	log.Printf("[auth] Registered services: register, sign-in, sign-out, refresh-token, validate-token")
	return nil
}

// handleRegister handles user registration.
func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, err := m.service.Register(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return RegisterResponse{}, err
	}
	return RegisterResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}, nil
}

// handleSignIn authenticates the user and moves the identity session.
func (m *AuthModule) handleSignIn(ctx context.Context, req SignInRequest, _ *mono.Msg) (SignInResponse, error) {
	tokens, err := m.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return SignInResponse{}, err
	}
	return SignInResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
		TokenType:    tokens.TokenType,
	}, nil
}

// handleSignOut clears the identity session.
func (m *AuthModule) handleSignOut(ctx context.Context, _ SignOutRequest, _ *mono.Msg) (SignOutResponse, error) {
	if err := m.service.SignOut(ctx); err != nil {
		return SignOutResponse{SignedOut: false}, err
	}
	return SignOutResponse{SignedOut: true}, nil
}

// handleRefresh exchanges a refresh token for a new token pair.
func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (RefreshResponse, error) {
	tokens, err := m.service.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		return RefreshResponse{}, err
	}
	return RefreshResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
		TokenType:    tokens.TokenType,
	}, nil
}

// handleValidateToken validates an access token.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		return ValidateTokenResponse{Valid: false, Error: err.Error()}, nil
	}
	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// Session returns the process-wide identity session.
func (m *AuthModule) Session() *Session {
	return m.session
}
