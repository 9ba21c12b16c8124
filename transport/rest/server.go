package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rocketscienceinc/gridroom-backend/internal/entity"
)

type coordinator interface {
	CreateRoom(ctx context.Context, name string) (string, error)
	JoinByCode(ctx context.Context, code, name string) (string, error)
	StartByCode(ctx context.Context, code string) (*entity.Room, error)
	Room(ctx context.Context, code string) (*entity.Room, error)
	Watch(ctx context.Context, code string) (<-chan *entity.Room, error)
}

type Server struct {
	logger      *slog.Logger
	coordinator coordinator
}

func New(logger *slog.Logger, coordinator coordinator) *Server {
	return &Server{
		logger:      logger,
		coordinator: coordinator,
	}
}

func (that *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", that.ping)

	rooms := router.Group("/api/rooms")
	rooms.POST("", that.createRoom)
	rooms.POST("/join", that.joinRoom)
	rooms.POST("/:code/start", that.startRoom)
	rooms.GET("/:code/events", that.streamRoom)

	return router
}

func (that *Server) Start(port string) error {
	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: that.router(),
		// no write timeout: /events streams indefinitely
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
