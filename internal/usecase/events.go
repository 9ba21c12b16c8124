package usecase

import "github.com/rocketscienceinc/gridroom-backend/internal/entity"

// Outbound event actions. Transports deliver these as-is; rejection events
// are produced at the transport boundary from the returned error.
const (
	ActionRoleAssigned    = "game:role"
	ActionState           = "game:state"
	ActionPlayersComplete = "game:ready"
	ActionParticipantLeft = "game:left"
	ActionRejected        = "game:error"
)

// Event is one outbound notification produced by the coordinator.
type Event struct {
	Action  string
	Payload any
}

type RolePayload struct {
	Mark   string `json:"mark"`
	IsHost bool   `json:"is_host"`
}

type StatePayload struct {
	Room *entity.Room `json:"room"`
}

type RosterPayload struct {
	Players map[string]string `json:"players"`
}

type LeftPayload struct {
	Mark string `json:"mark"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// Notifier is the transport the coordinator fans events out through. Sends
// are best effort: a failed delivery to one member must not abort the rest.
type Notifier interface {
	JoinRoom(code, connID string)
	LeaveRoom(code, connID string)
	Broadcast(code string, event *Event)
	SendTo(connID string, event *Event)
}
