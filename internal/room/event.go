package room

import (
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/pkg/types"
)

// ConnID identifies one live transport connection. The room never owns the
// connection, only an outbox the transport drains.
type ConnID string

type EventType string

const (
	EvtWelcome          EventType = types.EvtWelcome
	EvtRoomCreated      EventType = types.EvtRoomCreated
	EvtJoined           EventType = types.EvtJoined
	EvtLeft             EventType = types.EvtLeft
	EvtMemberCount      EventType = types.EvtMemberCount
	EvtRoleTaken        EventType = types.EvtRoleTaken
	EvtRoleClaimed      EventType = types.EvtRoleClaimed
	EvtSessionStarted   EventType = types.EvtSessionStarted
	EvtLedgerUpdated    EventType = types.EvtLedgerUpdated
	EvtHostDisconnected EventType = types.EvtHostDisconnected
	EvtGameOver         EventType = types.EvtGameOver
	EvtError            EventType = types.EvtError
)

// Event is what a member's outbox receives. Only the fields relevant to Type
// are set; Ledger and Roles are fresh copies shared read-only by all
// recipients of one broadcast.
type Event struct {
	Type    EventType
	Code    string
	Version int
	ConnID  ConnID
	Members int
	Players int
	Role    engine.Role
	Roles   []engine.Role
	Account *engine.Account
	Ledger  engine.Ledger
	ErrCode string
	Reason  string
}
