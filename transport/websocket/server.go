package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type coordinator interface {
	JoinRoom(ctx context.Context, code, connID, name string) error
	StartGame(ctx context.Context, code, connID string) error
	MakeTurn(ctx context.Context, code, connID, mark string, cell int) error
	Disconnect(ctx context.Context, code, connID string)
}

type Server struct {
	logger      *slog.Logger
	hub         *Hub
	coordinator coordinator
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, sender *client, message *Message) error
}

func New(logger *slog.Logger, hub *Hub, coordinator coordinator) *Server {
	server := &Server{
		logger:      logger,
		hub:         hub,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers["game:join"] = server.handleJoin
	server.handlers["game:start"] = server.handleStart
	server.handlers["game:turn"] = server.handleTurn

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection upgrades the request and drives the connection until the
// client goes away, then reports the disconnect to the coordinator.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	sender := &client{id: uuid.NewString(), conn: conn}
	that.hub.register(sender)

	log.Info("WebSocket connection established", "connectionID", sender.id)

	that.readLoop(ctx, sender)

	code := that.hub.RoomOf(sender.id)
	that.coordinator.Disconnect(ctx, code, sender.id)
	that.hub.unregister(sender.id)

	_ = conn.Close()

	log.Info("WebSocket connection closed", "connectionID", sender.id)
}

// readLoop processes messages from the client one at a time.
func (that *Server) readLoop(ctx context.Context, sender *client) {
	log := that.logger.With("method", "readLoop", "connectionID", sender.id)

	for {
		_, data, err := sender.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, sender, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}
