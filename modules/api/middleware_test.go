package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	domain "github.com/KuwadaKouhei/todo-app/domain/user"
	"github.com/KuwadaKouhei/todo-app/modules/auth"
)

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	validateTokenFunc func(ctx context.Context, token string) (*domain.Claims, error)
}

func (m *mockAuthPort) Register(context.Context, string, string, string) (*auth.RegisterResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) SignIn(context.Context, string, string) (*auth.SignInResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) SignOut(context.Context) error {
	return errors.New("not implemented")
}

func (m *mockAuthPort) Refresh(context.Context, string) (*auth.RefreshResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		mockAuth       *mockAuthPort
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Provide a Bearer access token"`,
		},
		{
			name:           "wrong authorization scheme",
			authHeader:     "Basic token123",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Provide a Bearer access token"`,
		},
		{
			name:           "bearer scheme without a token",
			authHeader:     "Bearer",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Provide a Bearer access token"`,
		},
		{
			name:       "invalid token",
			authHeader: "Bearer invalid-token",
			mockAuth: &mockAuthPort{
				validateTokenFunc: func(ctx context.Context, token string) (*domain.Claims, error) {
					return nil, errors.New("invalid token")
				},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Invalid or expired token"`,
		},
		{
			name:       "valid token",
			authHeader: "Bearer valid-token",
			mockAuth: &mockAuthPort{
				validateTokenFunc: func(ctx context.Context, token string) (*domain.Claims, error) {
					return &domain.Claims{
						UserID: "user-123",
						Email:  "test@example.com",
					}, nil
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"authenticated"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(AuthMiddleware(tt.mockAuth))
			app.Get("/test", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"status": "authenticated"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("io.ReadAll() error = %v", err)
			}
			if tt.expectedBody != "" && !strings.Contains(string(body), tt.expectedBody) {
				t.Errorf("body = %v, want to contain %v", string(body), tt.expectedBody)
			}
		})
	}
}

func TestAuthMiddleware_UserContext(t *testing.T) {
	mockAuth := &mockAuthPort{
		validateTokenFunc: func(ctx context.Context, token string) (*domain.Claims, error) {
			return &domain.Claims{
				UserID: "user-456",
				Email:  "context@example.com",
			}, nil
		},
	}

	app := fiber.New()
	app.Use(AuthMiddleware(mockAuth))

	var capturedClaims *domain.Claims
	app.Get("/test", func(c *fiber.Ctx) error {
		claims, ok := c.Locals(UserContextKey).(*domain.Claims)
		if !ok {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "no claims"})
		}
		capturedClaims = claims
		return c.JSON(fiber.Map{"status": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if capturedClaims == nil {
		t.Fatal("claims not set in context")
	}
	if capturedClaims.UserID != "user-456" {
		t.Errorf("claims.UserID = %v, want %v", capturedClaims.UserID, "user-456")
	}
	if capturedClaims.Email != "context@example.com" {
		t.Errorf("claims.Email = %v, want %v", capturedClaims.Email, "context@example.com")
	}
}
