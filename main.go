package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/KuwadaKouhei/todo-app/modules/activity"
	"github.com/KuwadaKouhei/todo-app/modules/api"
	"github.com/KuwadaKouhei/todo-app/modules/auth"
	"github.com/KuwadaKouhei/todo-app/modules/broadcast"
	"github.com/KuwadaKouhei/todo-app/modules/mirror"
	"github.com/KuwadaKouhei/todo-app/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Todo App - Synchronized Task Mirror ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	storeModule := store.NewModule()
	authModule := auth.NewModule()
	activityModule := activity.NewModule()
	broadcastModule := broadcast.NewModule()
	mirrorModule := mirror.NewModule(storeModule, authModule)
	apiModule := api.NewModule(mirrorModule, broadcastModule, activityModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: Remote task store (SQLite + optional Redis snapshot cache)
	// - auth: Authentication provider + identity session
	// - activity: Bounded audit log (consumes store and session events)
	// - broadcast: WebSocket hub (consumes derived-view events)
	// - mirror: Synchronized task mirror + derived view (needs store and auth)
	// - api: Fiber HTTP/WebSocket surface (depends on auth services)
	app.Register(storeModule)
	app.Register(authModule)
	app.Register(activityModule)
	app.Register(broadcastModule)
	app.Register(mirrorModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Task Store: GORM + SQLite, optional Redis snapshot cache")
	log.Println("  - Mirror: live local task mirror driven by store subscriptions")
	log.Println("")
	log.Println("Event Flow:")
	log.Println("  - TodoCreated/Updated/Deleted events -> activity module")
	log.Println("  - UserSignedIn/SignedOut events -> activity module")
	log.Println("  - ViewUpdated events -> broadcast module -> WebSocket clients")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                    - Health check")
	log.Println("  POST   /api/v1/auth/register      - Create an account")
	log.Println("  POST   /api/v1/auth/login         - Sign in (moves the identity session)")
	log.Println("  POST   /api/v1/auth/logout        - Sign out")
	log.Println("  POST   /api/v1/auth/refresh       - Refresh tokens")
	log.Println("  GET    /api/v1/session            - Identity session state")
	log.Println("  GET    /api/v1/todos              - Derived task view (filter/sort/search)")
	log.Println("  POST   /api/v1/todos              - Add a task")
	log.Println("  PATCH  /api/v1/todos/:id          - Update a task")
	log.Println("  DELETE /api/v1/todos/:id          - Delete a task")
	log.Println("  POST   /api/v1/todos/:id/toggle   - Toggle completion")
	log.Println("  PUT    /api/v1/view               - Set view parameters")
	log.Println("  GET    /api/v1/activity           - Recent activity log")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Receives the derived view on connect and after every change")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
