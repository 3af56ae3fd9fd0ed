package api

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/KuwadaKouhei/todo-app/modules/activity"
	"github.com/KuwadaKouhei/todo-app/modules/auth"
	"github.com/KuwadaKouhei/todo-app/modules/broadcast"
	"github.com/KuwadaKouhei/todo-app/modules/mirror"
)

// APIModule is the consumer-facing surface: a Fiber HTTP server exposing
// the auth provider, the synchronization store, and the WebSocket push
// endpoint.
type APIModule struct {
	app            *fiber.App
	authContainer  mono.ServiceContainer
	authAdapter    auth.AuthPort
	mirrorModule   *mirror.MirrorModule
	broadcastHub   *broadcast.Hub
	activityModule *activity.ActivityModule
	handlers       *Handlers
	port           string
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule. PORT overrides the listen port.
func NewModule(mirrorModule *mirror.MirrorModule, broadcastModule *broadcast.BroadcastModule, activityModule *activity.ActivityModule) *APIModule {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &APIModule{
		mirrorModule:   mirrorModule,
		broadcastHub:   broadcastModule.GetHub(),
		activityModule: activityModule,
		port:           port,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authContainer = container
		m.authAdapter = auth.NewAuthAdapter(container)
	}
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authAdapter == nil {
		return fmt.Errorf("auth adapter dependency not set")
	}
	store := m.mirrorModule.Store()
	if store == nil {
		return fmt.Errorf("mirror module not started")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "todo-app",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	m.app.Use(recover.New())

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PATCH,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.handlers = NewHandlers(m.authAdapter, store, m.broadcastHub, m.activityModule)
	m.setupRoutes()

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.port,
		},
	}
}

func (m *APIModule) setupRoutes() {
	m.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := m.app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", m.handlers.Register)
	authGroup.Post("/login", m.handlers.Login)
	authGroup.Post("/logout", m.handlers.Logout)
	authGroup.Post("/refresh", m.handlers.Refresh)

	api.Get("/session", m.handlers.GetSession)

	protected := api.Group("", AuthMiddleware(m.authAdapter))
	protected.Get("/todos", m.handlers.ListTodos)
	protected.Post("/todos", m.handlers.CreateTodo)
	protected.Patch("/todos/:id", m.handlers.UpdateTodo)
	protected.Delete("/todos/:id", m.handlers.DeleteTodo)
	protected.Post("/todos/:id/toggle", m.handlers.ToggleTodo)
	protected.Put("/view", m.handlers.SetViewParams)
	protected.Get("/activity", m.handlers.GetActivity)

	// WebSocket upgrade for live view pushes.
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleWebSocket))
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
