package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/room-relay/config"
	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/relay"
	"github.com/example/room-relay/modules/wsserver"
)

func main() {
	log.Println("=== Room Relay - Fiber + WebSocket presence relay ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	slog.SetDefault(newSlogLogger(cfg.LogFormat))

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load time zone: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	broadcastModule := broadcast.NewModule(cfg.ClientSendBuffer, logger.WithModule("broadcast"))
	relayModule := relay.NewModule(broadcastModule.GetHub(), relay.Options{
		AdminName:   cfg.AdminName,
		WelcomeText: cfg.WelcomeText,
		QueueSize:   cfg.EventQueueSize,
		Formatter:   relay.NewFormatter(loc, cfg.TimeLayout),
	}, logger.WithModule("relay"))
	wsModule := wsserver.NewModule(cfg, relayModule.Relay(), broadcastModule.GetHub(), logger.WithModule("ws-server"))

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - broadcast: client queues and room groups (relay transport)
	// - relay: presence registry and event loop (ServiceProviderModule)
	// - ws-server: Fiber HTTP/WebSocket server, depends on relay
	app.Register(broadcastModule)
	app.Register(relayModule)
	app.Register(wsModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
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

func newSlogLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Chat client: http://localhost:%s/ (serving %s)", cfg.Port, cfg.PublicDir)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                   - Health check")
	log.Println("  GET    /api/v1/rooms             - List active rooms")
	log.Println("  GET    /api/v1/rooms/:room/users - List room occupants")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println(`  Inbound:  {"type":"enterRoom","payload":{"name":"Alice","room":"straw-hat"}}`)
	log.Println(`            {"type":"message","payload":{"name":"Alice","text":"hello"}}`)
	log.Println(`            {"type":"activity","payload":"Alice"}`)
	log.Println("  Outbound: message, userList, roomList, activity")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
