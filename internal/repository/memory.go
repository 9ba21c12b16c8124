package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gridroom-backend/internal/entity"
)

type memoryRoom struct {
	mu    sync.RWMutex
	rooms map[string]*entity.Room
}

// NewMemoryRoomRepository keeps rooms in process memory; state is lost on
// restart. Rooms are cloned on the way in and out, matching the value
// semantics of the Redis-backed store.
func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoom{
		rooms: make(map[string]*entity.Room),
	}
}

func (that *memoryRoom) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rooms[room.Code] = room.Clone()

	return nil
}

func (that *memoryRoom) GetByCode(_ context.Context, code string) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return room.Clone(), nil
}

func (that *memoryRoom) DeleteByCode(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, code)

	return nil
}
