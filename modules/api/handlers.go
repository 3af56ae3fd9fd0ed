package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
	"github.com/KuwadaKouhei/todo-app/modules/activity"
	"github.com/KuwadaKouhei/todo-app/modules/auth"
	"github.com/KuwadaKouhei/todo-app/modules/broadcast"
	"github.com/KuwadaKouhei/todo-app/modules/mirror"
	"github.com/KuwadaKouhei/todo-app/modules/store"
)

// Handlers contains the HTTP and WebSocket handlers.
type Handlers struct {
	authAdapter auth.AuthPort
	store       *mirror.Store
	hub         *broadcast.Hub
	activity    *activity.ActivityModule
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authAdapter auth.AuthPort, store *mirror.Store, hub *broadcast.Hub, activityModule *activity.ActivityModule) *Handlers {
	return &Handlers{
		authAdapter: authAdapter,
		store:       store,
		hub:         hub,
		activity:    activityModule,
	}
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authAdapter.Register(c.UserContext(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login signs a user in, making it the process's current identity.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authAdapter.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(resp)
}

// Logout clears the current identity.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if err := h.authAdapter.SignOut(c.UserContext()); err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(fiber.Map{"signed_out": true})
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	resp, err := h.authAdapter.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	return c.JSON(resp)
}

// GetSession describes the identity session.
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	resp := SessionResponse{}
	// The session state is observable through the mirror's lifecycle:
	// no_identity means signed out.
	state := h.store.LifecycleState()
	resp.SignedIn = state != mirror.StateNoIdentity
	resp.IsLoading = h.store.IsLoading()
	return c.JSON(resp)
}

// ListTodos returns the derived view. Query parameters, when present, set
// the view parameters first.
func (h *Handlers) ListTodos(c *fiber.Ctx) error {
	if v := c.Query("filter"); v != "" {
		f := todo.Filter(v)
		if !f.Valid() {
			return badRequest(c, "Unknown filter: "+v)
		}
		h.store.SetFilter(f)
	}
	if v := c.Query("sort"); v != "" {
		s := todo.Sort(v)
		if !s.Valid() {
			return badRequest(c, "Unknown sort: "+v)
		}
		h.store.SetSort(s)
	}
	if c.Request().URI().QueryArgs().Has("search") {
		h.store.SetSearchQuery(c.Query("search"))
	}

	return c.JSON(h.viewResponse())
}

// CreateTodo adds a task for the current identity.
func (h *Handlers) CreateTodo(c *fiber.Ctx) error {
	var req CreateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	input := todo.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    todo.Priority(req.Priority),
		DueDate:     req.DueDate,
	}
	if err := h.store.Add(c.UserContext(), input); err != nil {
		return h.handleStoreError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// UpdateTodo patches a task.
func (h *Handlers) UpdateTodo(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	patch, err := buildPatch(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if patch.Empty() {
		return badRequest(c, "Patch must change at least one field")
	}

	if err := h.store.Update(c.UserContext(), id, patch); err != nil {
		return h.handleStoreError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// DeleteTodo removes a task.
func (h *Handlers) DeleteTodo(c *fiber.Ctx) error {
	if err := h.store.Remove(c.UserContext(), c.Params("id")); err != nil {
		return h.handleStoreError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// ToggleTodo flips a task's completed flag. A stale id is a no-op, per the
// synchronization store's contract.
func (h *Handlers) ToggleTodo(c *fiber.Ctx) error {
	if err := h.store.Toggle(c.UserContext(), c.Params("id")); err != nil {
		return h.handleStoreError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// SetViewParams sets filter, sort, and search in one call.
func (h *Handlers) SetViewParams(c *fiber.Ctx) error {
	var req ViewParamsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.Filter != nil {
		f := todo.Filter(*req.Filter)
		if !f.Valid() {
			return badRequest(c, "Unknown filter: "+*req.Filter)
		}
		h.store.SetFilter(f)
	}
	if req.Sort != nil {
		s := todo.Sort(*req.Sort)
		if !s.Valid() {
			return badRequest(c, "Unknown sort: "+*req.Sort)
		}
		h.store.SetSort(s)
	}
	if req.SearchQuery != nil {
		h.store.SetSearchQuery(*req.SearchQuery)
	}

	return c.JSON(h.viewResponse())
}

// GetActivity returns the recent activity log.
func (h *Handlers) GetActivity(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"entries": h.activity.Recent()})
}

// HandleWebSocket registers the connection with the push hub. The client
// receives the current view immediately and every update thereafter until
// it disconnects.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	client := &broadcast.Client{
		ID:   uuid.New().String(),
		Conn: c,
	}
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		_ = c.Close()
	}()

	initial, err := json.Marshal(broadcast.PushMessage{
		Type:    "view",
		Payload: h.viewResponse(),
	})
	if err == nil {
		_ = c.WriteMessage(websocket.TextMessage, initial)
	}

	// Read loop: clients send nothing meaningful, but reading detects
	// disconnects and processes control frames.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handlers) viewResponse() ViewResponse {
	return ViewResponse{
		Tasks:       h.store.View(),
		Total:       len(h.store.Tasks()),
		Filter:      string(h.store.Filter()),
		Sort:        string(h.store.Sort()),
		SearchQuery: h.store.SearchQuery(),
		IsLoading:   h.store.IsLoading(),
		Error:       h.store.Err(),
		State:       string(h.store.LifecycleState()),
	}
}

// buildPatch converts the wire payload into a domain patch, decoding the
// three-way due date: omitted, explicit null, or a timestamp.
func buildPatch(req *UpdateTodoRequest) (todo.TaskPatch, error) {
	patch := todo.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.Priority != nil {
		p := todo.Priority(*req.Priority)
		if !p.Valid() {
			return todo.TaskPatch{}, errors.New("unknown priority: " + *req.Priority)
		}
		patch.Priority = &p
	}
	if len(req.DueDate) > 0 {
		patch.DueDateSet = true
		if !bytes.Equal(bytes.TrimSpace(req.DueDate), []byte("null")) {
			var due time.Time
			if err := json.Unmarshal(req.DueDate, &due); err != nil {
				return todo.TaskPatch{}, errors.New("invalid dueDate")
			}
			patch.DueDate = &due
		}
	}
	return patch, nil
}

func (h *Handlers) handleStoreError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, mirror.ErrAuthRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "auth_required",
			Message: "Sign in to modify tasks",
		})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Task not found",
		})
	case errors.Is(err, todo.ErrEmptyTitle):
		return badRequest(c, "Title must not be empty")
	case errors.Is(err, store.ErrWrite):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error:   "write_failed",
			Message: "The task store rejected the write",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case errors.Is(err, auth.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "A user with this email already exists",
		})
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong):
		return badRequest(c, err.Error())
	case errors.Is(err, auth.ErrNotSignedIn):
		return badRequest(c, "No identity is signed in")
	case errors.Is(err, auth.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}
