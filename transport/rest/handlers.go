package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gridroom-backend/internal/entity"
)

const keepAliveInterval = 30 * time.Second

type createRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

type joinRoomRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (that *Server) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (that *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	code, err := that.coordinator.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		that.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (that *Server) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mark, err := that.coordinator.JoinByCode(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		that.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "mark": mark})
}

func (that *Server) startRoom(c *gin.Context) {
	room, err := that.coordinator.StartByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		that.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// streamRoom pushes the room snapshot as a server-sent event on every state
// transition, with a periodic keep-alive comment, until the client leaves.
func (that *Server) streamRoom(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	room, err := that.coordinator.Room(ctx, code)
	if err != nil {
		that.renderError(c, err)
		return
	}

	updates, err := that.coordinator.Watch(ctx, code)
	if err != nil {
		that.renderError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	that.writeEvent(c, room)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			// the channel closes when the room is deleted
			if !ok {
				return
			}

			that.writeEvent(c, snapshot)
		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}

func (that *Server) writeEvent(c *gin.Context, room *entity.Room) {
	data, err := json.Marshal(room)
	if err != nil {
		that.logger.Error("failed to marshal room snapshot", "error", err)
		return
	}

	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func (that *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrInvalidName),
		errors.Is(err, apperror.ErrRoomFull),
		errors.Is(err, apperror.ErrGameAlreadyStarted),
		errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrNotEnoughPlayers):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": apperror.ErrStoreUnavailable.Error()})
	default:
		that.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
