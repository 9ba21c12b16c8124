package websocket

import (
	"encoding/json"
	"fmt"
)

// Message is the wire envelope for both directions: an action name plus an
// action-specific payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries the inbound command fields; which ones are required
// depends on the action.
type Payload struct {
	RoomCode string `json:"room_code,omitempty"`
	Name     string `json:"name,omitempty"`
	Mark     string `json:"mark,omitempty"`
	Cell     *int   `json:"cell,omitempty"`
}

func newMessage(action string, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Message{Action: action, Payload: body}, nil
}
