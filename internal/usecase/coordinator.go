package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gridroom-backend/internal/entity"
	"github.com/rocketscienceinc/gridroom-backend/internal/pkg"
)

const (
	// DisconnectPolicyRetain keeps the room alive so the player can
	// reconnect; idle rooms are reaped by the cleanup loop after RoomTTL.
	DisconnectPolicyRetain = "retain"
	// DisconnectPolicyEnd terminates and deletes the room as soon as any
	// bound player disconnects.
	DisconnectPolicyEnd = "end"

	maxCodeAttempts = 10
	cleanupInterval = 30 * time.Second
	watchBuffer     = 8
)

var ErrCodeSpaceExhausted = errors.New("could not generate a free room code")

// roomLock is one entry in the per-room lock map. refs counts holders plus
// waiters, so an entry is only dropped from the map once nobody references
// it; evicting a mutex that someone still holds would let a later event
// acquire a fresh mutex for the same room and run concurrently.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	DeleteByCode(ctx context.Context, code string) error
}

type Options struct {
	FadingMoves      bool
	DisconnectPolicy string
	RoomTTL          time.Duration
}

// Coordinator is the authoritative state machine for all rooms. Every
// mutating event takes the per-room lock and re-reads the room from the
// store, so concurrent events on one room are strictly serialized and never
// act on stale state.
type Coordinator struct {
	logger   *slog.Logger
	rooms    roomRepo
	notifier Notifier
	opts     Options

	mu       sync.Mutex
	locks    map[string]*roomLock
	idleAt   map[string]time.Time
	watchers map[string]map[chan *entity.Room]struct{}
}

func NewCoordinator(logger *slog.Logger, rooms roomRepo, notifier Notifier, opts Options) *Coordinator {
	if opts.DisconnectPolicy == "" {
		opts.DisconnectPolicy = DisconnectPolicyRetain
	}

	if opts.RoomTTL <= 0 {
		opts.RoomTTL = 5 * time.Minute
	}

	return &Coordinator{
		logger:   logger,
		rooms:    rooms,
		notifier: notifier,
		opts:     opts,

		locks:    make(map[string]*roomLock),
		idleAt:   make(map[string]time.Time),
		watchers: make(map[string]map[chan *entity.Room]struct{}),
	}
}

// JoinRoom binds a connection to a seat in the room, creating the room on
// first use of the code. A returning name is recognized as the same mark and
// only gets its connection id refreshed.
func (that *Coordinator) JoinRoom(ctx context.Context, code, connID, name string) error {
	log := that.logger.With("method", "JoinRoom", "roomCode", code)

	if !entity.ValidPlayerName(name) {
		return apperror.ErrInvalidName
	}

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		room = entity.NewRoom(code, that.opts.FadingMoves)
		err = nil
	}

	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	mark, created, err := room.AssignOrRecognize(connID, name)
	if err != nil {
		return err
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	that.markActive(code)
	that.notifier.JoinRoom(code, connID)

	that.notifier.SendTo(connID, &Event{
		Action:  ActionRoleAssigned,
		Payload: RolePayload{Mark: mark, IsHost: mark == entity.MarkX},
	})

	if created && room.BothBound() {
		that.notifier.Broadcast(code, &Event{
			Action:  ActionPlayersComplete,
			Payload: RosterPayload{Players: room.Roster()},
		})
	}

	that.notifier.SendTo(connID, &Event{
		Action:  ActionState,
		Payload: StatePayload{Room: room.Snapshot()},
	})
	that.notifyWatchers(code, room)

	log.Info("player joined room", "mark", mark, "name", name)

	return nil
}

// StartGame moves the room from waiting to playing. Only the host connection
// may trigger it and both seats must be taken.
func (that *Coordinator) StartGame(ctx context.Context, code, connID string) error {
	log := that.logger.With("method", "StartGame", "roomCode", code)

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	if !room.IsHostConnection(connID) {
		return apperror.ErrNotHost
	}

	if err = room.Start(); err != nil {
		return err
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	that.broadcastState(code, room)

	log.Info("game started")

	return nil
}

// MakeTurn validates and applies one move; on rejection the room is left
// untouched and only the sender learns about it.
func (that *Coordinator) MakeTurn(ctx context.Context, code, connID, mark string, cell int) error {
	log := that.logger.With("method", "MakeTurn", "roomCode", code)

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	if err = room.MakeTurn(mark, connID, cell); err != nil {
		return err
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if room.IsEnded() {
		that.markIdle(code)
		log.Info("game ended", "winner", room.Winner)
	}

	that.broadcastState(code, room)

	return nil
}

// Disconnect applies the configured disconnect policy. It never fails past
// the event boundary; cleanup faults are logged and the remaining player is
// still notified best-effort.
func (that *Coordinator) Disconnect(ctx context.Context, code, connID string) {
	log := that.logger.With("method", "Disconnect", "roomCode", code)

	that.notifier.LeaveRoom(code, connID)

	if code == "" || connID == "" {
		return
	}

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, apperror.ErrRoomNotFound) {
			log.Error("failed to get room", "error", err)
		}
		return
	}

	mark := room.MarkOfConnection(connID)
	if mark == "" {
		return
	}

	room.Players[mark].ConnectionID = ""

	that.notifier.Broadcast(code, &Event{
		Action:  ActionParticipantLeft,
		Payload: LeftPayload{Mark: mark},
	})

	if that.opts.DisconnectPolicy == DisconnectPolicyEnd {
		room.Status = entity.StatusEnded
		room.Turn = ""

		that.broadcastState(code, room)

		if err = that.rooms.DeleteByCode(ctx, code); err != nil {
			log.Error("failed to delete room", "error", err)
		}

		that.forgetRoom(code)
		log.Info("room ended on disconnect", "mark", mark)

		return
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		log.Error("failed to update room", "error", err)
	}

	if !room.HasLiveConnections() {
		that.markIdle(code)
	}

	that.notifyWatchers(code, room)

	log.Info("player disconnected, seat kept for reconnect", "mark", mark)
}

// CreateRoom allocates a fresh unique code and reserves the host seat for
// the given name; the host binds to it when the socket join arrives.
func (that *Coordinator) CreateRoom(ctx context.Context, name string) (string, error) {
	log := that.logger.With("method", "CreateRoom")

	if !entity.ValidPlayerName(name) {
		return "", apperror.ErrInvalidName
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return "", ErrCodeSpaceExhausted
		}

		code = pkg.GenerateRoomCode()

		_, err := that.rooms.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
	}

	unlock := that.lockRoom(code)
	defer unlock()

	room := entity.NewRoom(code, that.opts.FadingMoves)
	if _, err := room.Reserve(name); err != nil {
		return "", err
	}

	if err := that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	// nobody is connected yet; the cleanup loop reaps it if nobody ever is
	that.markIdle(code)

	log.Info("room created", "roomCode", code)

	return code, nil
}

// JoinByCode reserves a seat over the HTTP surface. The seat is bound to a
// live connection later, when the player opens the socket with the same name.
func (that *Coordinator) JoinByCode(ctx context.Context, code, name string) (string, error) {
	log := that.logger.With("method", "JoinByCode", "roomCode", code)

	if !entity.ValidPlayerName(name) {
		return "", apperror.ErrInvalidName
	}

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}

	if !room.IsWaiting() {
		return "", apperror.ErrGameAlreadyStarted
	}

	mark, err := room.Reserve(name)
	if err != nil {
		return "", err
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return "", fmt.Errorf("failed to update room: %w", err)
	}

	if room.BothBound() {
		that.notifier.Broadcast(code, &Event{
			Action:  ActionPlayersComplete,
			Payload: RosterPayload{Players: room.Roster()},
		})
	}

	that.notifyWatchers(code, room)

	log.Info("seat reserved", "mark", mark, "name", name)

	return mark, nil
}

// StartByCode is the HTTP start: no connection identity, so it only checks
// that the roster is complete and the room is still waiting.
func (that *Coordinator) StartByCode(ctx context.Context, code string) (*entity.Room, error) {
	log := that.logger.With("method", "StartByCode", "roomCode", code)

	unlock := that.lockRoom(code)
	defer unlock()

	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err = room.Start(); err != nil {
		return nil, err
	}

	if err = that.rooms.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	that.broadcastState(code, room)

	log.Info("game started")

	return room.Snapshot(), nil
}

// Room returns the current client-facing snapshot of a room.
func (that *Coordinator) Room(ctx context.Context, code string) (*entity.Room, error) {
	room, err := that.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return room.Snapshot(), nil
}

// Watch subscribes to room snapshots: one is pushed on every state
// transition until ctx is canceled, and the channel is closed when the room
// is deleted. Slow consumers lose updates rather than block the coordinator.
func (that *Coordinator) Watch(ctx context.Context, code string) (<-chan *entity.Room, error) {
	if _, err := that.rooms.GetByCode(ctx, code); err != nil {
		return nil, err
	}

	updates := make(chan *entity.Room, watchBuffer)

	that.mu.Lock()
	set, ok := that.watchers[code]
	if !ok {
		set = make(map[chan *entity.Room]struct{})
		that.watchers[code] = set
	}
	set[updates] = struct{}{}
	that.mu.Unlock()

	go func() {
		<-ctx.Done()

		that.mu.Lock()
		if set, ok := that.watchers[code]; ok {
			delete(set, updates)
			if len(set) == 0 {
				delete(that.watchers, code)
			}
		}
		that.mu.Unlock()
	}()

	return updates, nil
}

// RunCleanup deletes rooms that have had no live connections for RoomTTL.
// Blocks until ctx is canceled.
func (that *Coordinator) RunCleanup(ctx context.Context) {
	log := that.logger.With("method", "RunCleanup")

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.cleanupIdleRooms(ctx, log)
		}
	}
}

func (that *Coordinator) cleanupIdleRooms(ctx context.Context, log *slog.Logger) {
	now := time.Now()

	that.mu.Lock()
	var expired []string
	for code, since := range that.idleAt {
		if now.Sub(since) >= that.opts.RoomTTL {
			expired = append(expired, code)
		}
	}
	that.mu.Unlock()

	for _, code := range expired {
		unlock := that.lockRoom(code)
		err := that.rooms.DeleteByCode(ctx, code)
		unlock()

		if err != nil {
			log.Error("failed to delete idle room", "roomCode", code, "error", err)
			continue
		}

		that.forgetRoom(code)
		log.Info("idle room deleted", "roomCode", code)
	}
}

func (that *Coordinator) broadcastState(code string, room *entity.Room) {
	that.notifier.Broadcast(code, &Event{
		Action:  ActionState,
		Payload: StatePayload{Room: room.Snapshot()},
	})
	that.notifyWatchers(code, room)
}

func (that *Coordinator) notifyWatchers(code string, room *entity.Room) {
	snapshot := room.Snapshot()

	that.mu.Lock()
	defer that.mu.Unlock()

	for ch := range that.watchers[code] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// lockRoom serializes all mutating events on one room. The entry is
// refcounted and removed when the last holder or waiter releases it, so the
// map does not grow with every code ever seen.
func (that *Coordinator) lockRoom(code string) func() {
	that.mu.Lock()
	lock, ok := that.locks[code]
	if !ok {
		lock = &roomLock{}
		that.locks[code] = lock
	}
	lock.refs++
	that.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		that.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(that.locks, code)
		}
		that.mu.Unlock()
	}
}

func (that *Coordinator) markActive(code string) {
	that.mu.Lock()
	delete(that.idleAt, code)
	that.mu.Unlock()
}

func (that *Coordinator) markIdle(code string) {
	that.mu.Lock()
	that.idleAt[code] = time.Now()
	that.mu.Unlock()
}

// forgetRoom drops the bookkeeping for a deleted room and ends its watcher
// streams; a closed channel is how subscribers learn the room is gone.
func (that *Coordinator) forgetRoom(code string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.idleAt, code)

	for ch := range that.watchers[code] {
		close(ch)
	}
	delete(that.watchers, code)
}
