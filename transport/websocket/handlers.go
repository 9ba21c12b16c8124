package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gridroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gridroom-backend/internal/usecase"
)

func (that *Server) handleJoin(ctx context.Context, sender *client, msg *Message) error {
	log := that.logger.With("method", "handleJoin")

	var payload Payload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.RoomCode == "" {
		return that.sendRejection(sender, "room_code is required")
	}

	if payload.Name == "" {
		return that.sendRejection(sender, "name is required")
	}

	if err := that.coordinator.JoinRoom(ctx, payload.RoomCode, sender.id, payload.Name); err != nil {
		log.Info("join rejected", "roomCode", payload.RoomCode, "error", err)
		return that.sendRejection(sender, err.Error())
	}

	return nil
}

func (that *Server) handleStart(ctx context.Context, sender *client, msg *Message) error {
	log := that.logger.With("method", "handleStart")

	var payload Payload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.RoomCode == "" {
		return that.sendRejection(sender, "room_code is required")
	}

	if err := that.coordinator.StartGame(ctx, payload.RoomCode, sender.id); err != nil {
		log.Info("start rejected", "roomCode", payload.RoomCode, "error", err)
		return that.sendRejection(sender, err.Error())
	}

	return nil
}

func (that *Server) handleTurn(ctx context.Context, sender *client, msg *Message) error {
	log := that.logger.With("method", "handleTurn")

	var payload Payload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.RoomCode == "" {
		return that.sendRejection(sender, "room_code is required")
	}

	if payload.Mark == "" {
		return that.sendRejection(sender, "mark is required")
	}

	if payload.Cell == nil {
		return that.sendRejection(sender, "cell is required")
	}

	err := that.coordinator.MakeTurn(ctx, payload.RoomCode, sender.id, payload.Mark, *payload.Cell)
	if err != nil {
		if errors.Is(err, apperror.ErrIdentityMismatch) {
			log.Warn("move with a mark not bound to this connection",
				"roomCode", payload.RoomCode, "mark", payload.Mark, "connectionID", sender.id)
		} else {
			log.Info("turn rejected", "roomCode", payload.RoomCode, "error", err)
		}

		return that.sendRejection(sender, err.Error())
	}

	return nil
}

// sendRejection tells only the sender why its command was refused.
func (that *Server) sendRejection(sender *client, reason string) error {
	msg, err := newMessage(usecase.ActionRejected, usecase.ErrorPayload{Error: reason})
	if err != nil {
		return err
	}

	if err = sender.send(msg); err != nil {
		return fmt.Errorf("failed to send rejection: %w", err)
	}

	return nil
}
