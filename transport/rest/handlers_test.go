package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rocketscienceinc/gridroom-backend/internal/repository"
	"github.com/rocketscienceinc/gridroom-backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopNotifier struct{}

func (noopNotifier) JoinRoom(_, _ string)                 {}
func (noopNotifier) LeaveRoom(_, _ string)                {}
func (noopNotifier) Broadcast(_ string, _ *usecase.Event) {}
func (noopNotifier) SendTo(_ string, _ *usecase.Event)    {}

func newTestRouter(t *testing.T) (*gin.Engine, *usecase.Coordinator) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := usecase.NewCoordinator(logger, repository.NewMemoryRoomRepository(), noopNotifier{}, usecase.Options{})

	return New(logger, coordinator).router(), coordinator
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	return recorder
}

func TestPing(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", recorder.Body.String())
}

func TestCreateRoom(t *testing.T) {
	t.Run("Returns a fresh six character code", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms", `{"name":"Ann"}`)

		require.Equal(t, http.StatusOK, recorder.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Len(t, body["code"], 6)
	})

	t.Run("Rejects a missing name", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms", `{}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Rejects a too short name", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms", `{"name":"A"}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Reserves the guest seat in an existing room", func(t *testing.T) {
		router, coordinator := newTestRouter(t)
		code, err := coordinator.CreateRoom(ctx, "Ann")
		require.NoError(t, err)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/join", `{"code":"`+code+`","name":"Bob"}`)

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Success bool   `json:"success"`
			Mark    string `json:"mark"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "O", body.Mark)
	})

	t.Run("Unknown code maps to 404", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/join", `{"code":"NOPE42","name":"Bob"}`)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("Full room maps to 400", func(t *testing.T) {
		router, coordinator := newTestRouter(t)
		code, err := coordinator.CreateRoom(ctx, "Ann")
		require.NoError(t, err)
		_, err = coordinator.JoinByCode(ctx, code, "Bob")
		require.NoError(t, err)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/join", `{"code":"`+code+`","name":"Eve"}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestStartRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Starts a complete room and returns the snapshot", func(t *testing.T) {
		router, coordinator := newTestRouter(t)
		code, err := coordinator.CreateRoom(ctx, "Ann")
		require.NoError(t, err)
		_, err = coordinator.JoinByCode(ctx, code, "Bob")
		require.NoError(t, err)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/start", "")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Status string `json:"status"`
			Turn   string `json:"player_turn"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "playing", body.Status)
		assert.Equal(t, "X", body.Turn)
	})

	t.Run("Incomplete roster maps to 400", func(t *testing.T) {
		router, coordinator := newTestRouter(t)
		code, err := coordinator.CreateRoom(ctx, "Ann")
		require.NoError(t, err)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/"+code+"/start", "")

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Unknown code maps to 404", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodPost, "/api/rooms/NOPE42/start", "")

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestStreamRoom(t *testing.T) {
	t.Run("Unknown code maps to 404 before streaming begins", func(t *testing.T) {
		router, _ := newTestRouter(t)

		recorder := doJSON(t, router, http.MethodGet, "/api/rooms/NOPE42/events", "")

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}
