package api

import (
	"encoding/json"
	"time"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the token refresh payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse describes the identity session.
type SessionResponse struct {
	SignedIn    bool   `json:"signed_in"`
	IsLoading   bool   `json:"is_loading"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// CreateTodoRequest is the task creation payload.
type CreateTodoRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// UpdateTodoRequest is the partial-update payload. DueDate is raw JSON so
// an explicit null ("clear the deadline") can be told apart from an
// omitted field ("leave it alone").
type UpdateTodoRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Priority    *string         `json:"priority,omitempty"`
	Completed   *bool           `json:"completed,omitempty"`
	DueDate     json.RawMessage `json:"dueDate,omitempty"`
}

// ViewParamsRequest sets the derived-view parameters.
type ViewParamsRequest struct {
	Filter      *string `json:"filter,omitempty"`
	Sort        *string `json:"sort,omitempty"`
	SearchQuery *string `json:"search,omitempty"`
}

// ViewResponse is the derived view plus synchronization status.
type ViewResponse struct {
	Tasks       []todo.Task `json:"tasks"`
	Total       int         `json:"total"`
	Filter      string      `json:"filter"`
	Sort        string      `json:"sort"`
	SearchQuery string      `json:"search,omitempty"`
	IsLoading   bool        `json:"is_loading"`
	Error       string      `json:"error,omitempty"`
	State       string      `json:"state"`
}
