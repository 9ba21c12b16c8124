package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gridroom-backend/internal/entity"
)

// RoomRepository is the authoritative store for rooms, keyed by room code.
type RoomRepository interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	DeleteByCode(ctx context.Context, code string) error
}

type dbRoom struct {
	client *redis.Client
}

// NewRedisRoomRepository persists rooms in Redis so they survive process
// restarts. Store failures surface as ErrStoreUnavailable.
func NewRedisRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) CreateOrUpdate(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	roomKey := "room:" + room.Code
	if err = that.client.Set(ctx, roomKey, roomJSON, 0).Err(); err != nil {
		return fmt.Errorf("%w: failed to set room: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	roomKey := "room:" + code

	response, err := that.client.Get(ctx, roomKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to get room by code: %w", apperror.ErrStoreUnavailable, err)
	}

	var existingRoom entity.Room
	if err = json.Unmarshal([]byte(response), &existingRoom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	if existingRoom.Players == nil {
		existingRoom.Players = make(map[string]*entity.PlayerBinding)
	}

	return &existingRoom, nil
}

func (that *dbRoom) DeleteByCode(ctx context.Context, code string) error {
	roomKey := "room:" + code

	if err := that.client.Del(ctx, roomKey).Err(); err != nil {
		return fmt.Errorf("%w: failed to delete room by code: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}
