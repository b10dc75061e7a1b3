// Package types names the messages of the /ws protocol. Clients that only
// need the vocabulary can import this package without pulling in the server.
package types

// Client -> Server
//
// Every message is a JSON object with a "type" field; the other fields are
// only read by the types that need them.
//
// create_room: {}
// join_room:     code: string
// leave_room:    {}
// start_session: code: string
// claim_role:    code: string, role: string
// transfer:      code: string, role: string,
//                resource: "money" | "carbon",
//                amount: string | number (may be negative)
// end_session:   code: string
const (
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgStartSession = "start_session"
	MsgClaimRole    = "claim_role"
	MsgTransfer     = "transfer"
	MsgEndSession   = "end_session"
)

// Server -> Client
//
// welcome:           conn_id
// room_created:      code, members            (creator only)
// joined:            code, members            (joiner only)
// left:              {}                       (leaver only)
// member_count:      code, version, members
// session_started:   code, version, player_count, roles
// role_taken:        code, version, role
// role_claimed:      code, role, account      (claimer only)
// ledger_updated:    code, version, ledger    ({role: {money, carbon}})
// host_disconnected: code
// game_over:         code, version, ledger
// error:             error_code, error        (requester only)
const (
	EvtWelcome          = "welcome"
	EvtRoomCreated      = "room_created"
	EvtJoined           = "joined"
	EvtLeft             = "left"
	EvtMemberCount      = "member_count"
	EvtSessionStarted   = "session_started"
	EvtRoleTaken        = "role_taken"
	EvtRoleClaimed      = "role_claimed"
	EvtLedgerUpdated    = "ledger_updated"
	EvtHostDisconnected = "host_disconnected"
	EvtGameOver         = "game_over"
	EvtError            = "error"
)
