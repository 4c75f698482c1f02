package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/Daultz/elemental-duo-multiplayer/config"
	"github.com/Daultz/elemental-duo-multiplayer/metrics"
	"github.com/Daultz/elemental-duo-multiplayer/protocol"
	"github.com/Daultz/elemental-duo-multiplayer/relay"
	"github.com/Daultz/elemental-duo-multiplayer/session"
	ws "github.com/Daultz/elemental-duo-multiplayer/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(cfg.Session.GracePeriod)
	engine := relay.New(manager, cfg.Relay)
	handler := protocol.NewHandler(manager, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.StartSweeper(ctx, cfg.Session.SweepInterval, cfg.Session.StaleThreshold)

	startedAt := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(handler, cfg.WebSocket))
	mux.HandleFunc("/health", healthHandler(manager, startedAt))
	mux.HandleFunc("/stats", statsHandler(manager))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	notice, _ := json.Marshal(map[string]string{
		"type":    "serverShutdown",
		"message": "server is shutting down",
	})
	manager.BroadcastAll(notice)
	// give the write pumps a moment to flush the notice
	time.Sleep(250 * time.Millisecond)
	manager.CloseAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func wsHandler(handler *protocol.Handler, cfg config.WebSocketConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, handler, cfg)
		wsConn.Start()
	}
}

func healthHandler(manager *session.Manager, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":             "ok",
			"activeSessionCount": stats.TotalSessions,
			"totalOccupants":     stats.TotalOccupants,
			"uptime":             time.Since(startedAt).String(),
			"timestamp":          time.Now().UnixMilli(),
		})
	}
}

func statsHandler(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(manager.Stats())
	}
}
