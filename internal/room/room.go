package room

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	Conn   ConnID
	Outbox chan<- Event // where this member wants to receive events
	Reply  chan error
}

func (Join) isRoomMsg() {}

type Leave struct {
	Conn  ConnID
	Reply chan LeaveResult
}

func (Leave) isRoomMsg() {}

type FromClient struct {
	Requester ConnID
	Cmd       engine.Command
	Reply     chan Result
}

func (FromClient) isRoomMsg() {}

type End struct {
	Reply chan View
}

func (End) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type LeaveResult struct {
	WasMember bool
	TornDown  bool
}

type Result struct {
	Account engine.Account // ClaimRole: the claimed role's account
	Ledger  Snapshot       // set when the command changed the ledger
	Err     error
}

// Snapshot is the ledger as of one room version.
type Snapshot struct {
	Version int
	Ledger  engine.Ledger
}

type View struct {
	Code       string
	Version    int
	Host       ConnID
	NumMembers int
	InProgress bool
	Roles      []engine.Role
	Available  []engine.Role
	Ledger     engine.Ledger
}

// CloseFunc is called from the room goroutine when the room stops, with the
// members it still held. It must not call back into the room.
type CloseFunc func(r *Room, released []ConnID)

type Room struct {
	code    string
	host    ConnID
	inbox   chan Msg
	state   engine.State
	version int
	members map[ConnID]chan<- Event
	onClose CloseFunc
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts a room whose only member is its host. The host receives
// room_created before any other event.
func New(parent context.Context, code string, host ConnID, outbox chan<- Event, rules engine.Rules, log *zap.Logger, onClose CloseFunc) *Room {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		code:    code,
		host:    host,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   engine.NewState(rules),
		members: map[ConnID]chan<- Event{host: outbox},
		onClose: onClose,
		log:     log.Named("room").With(zap.String("code", code)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.sendTo(host, outbox, Event{Type: EvtRoomCreated, Code: code, Members: 1})

	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

func (r *Room) Host() ConnID { return r.host }

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Shutdown stops the room without notifying members.
func (r *Room) Shutdown() { r.cancel() }

func (r *Room) loop() {
	defer close(r.done)
	defer r.cancel()

	for {
		select {
		case <-r.ctx.Done():
			r.teardown()
			return

		case m := <-r.inbox:
			if stop := r.handle(m); stop {
				return
			}
		}
	}
}

func (r *Room) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		if _, ok := r.members[msg.Conn]; ok {
			// Re-association of a known member: refresh its outbox only.
			r.members[msg.Conn] = msg.Outbox
			msg.Reply <- nil
			r.sendTo(msg.Conn, msg.Outbox, Event{Type: EvtJoined, Code: r.code, Version: r.version, Members: len(r.members)})
			break
		}
		if r.state.InProgress {
			msg.Reply <- apperr.ErrGameInProgress
			break
		}
		r.members[msg.Conn] = msg.Outbox
		r.version++
		msg.Reply <- nil
		r.sendTo(msg.Conn, msg.Outbox, Event{Type: EvtJoined, Code: r.code, Version: r.version, Members: len(r.members)})
		r.broadcastMembers()
		r.log.Debug("member joined", zap.String("conn", string(msg.Conn)), zap.Int("members", len(r.members)))

	case Leave:
		if _, ok := r.members[msg.Conn]; !ok {
			msg.Reply <- LeaveResult{}
			break
		}
		delete(r.members, msg.Conn)
		r.version++
		r.broadcastMembers()
		r.log.Debug("member left", zap.String("conn", string(msg.Conn)), zap.Int("members", len(r.members)))

		// The host leaving only ends a room that has not started yet.
		if msg.Conn == r.host && !r.state.InProgress {
			r.broadcast(Event{Type: EvtHostDisconnected})
			r.log.Info("host left before start, closing room")
			r.teardown()
			msg.Reply <- LeaveResult{WasMember: true, TornDown: true}
			return true
		}
		msg.Reply <- LeaveResult{WasMember: true}

	case FromClient:
		cmd := msg.Cmd
		if cmd.Type == engine.CmdStartSession {
			if !r.state.InProgress && msg.Requester != r.host {
				msg.Reply <- Result{Err: apperr.ErrNotHost}
				break
			}
			cmd.Players = len(r.members)
		}

		events, newState, err := engine.Apply(r.state, cmd)
		if err != nil {
			msg.Reply <- Result{Err: err}
			break
		}
		r.state = newState
		r.version++

		res := Result{}
		if cmd.Type == engine.CmdClaimRole {
			res.Account = r.state.Ledger[cmd.Role]
		}
		if engine.ContainsEvent(events, engine.EvtLedgerUpdated) {
			res.Ledger = Snapshot{Version: r.version, Ledger: maps.Clone(r.state.Ledger)}
		}
		msg.Reply <- res
		r.publish(events)

	case End:
		view := r.view()
		r.version++
		r.broadcast(Event{Type: EvtGameOver, Ledger: view.Ledger})
		r.log.Info("game over", zap.Int("members", len(r.members)))
		r.teardown()
		msg.Reply <- view
		return true

	case GetState:
		msg.Reply <- r.view()
	}
	return false
}

// teardown releases every remaining member back to the caller's registry.
func (r *Room) teardown() {
	released := slices.Collect(maps.Keys(r.members))
	clear(r.members)
	if r.onClose != nil {
		r.onClose(r, released)
	}
}

func (r *Room) publish(events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtSessionStarted:
			r.broadcast(Event{Type: EvtSessionStarted, Players: e.Players, Roles: slices.Clone(r.state.Roles)})
		case engine.EvtRoleTaken:
			r.broadcast(Event{Type: EvtRoleTaken, Role: e.Role})
		case engine.EvtLedgerUpdated:
			r.broadcast(Event{Type: EvtLedgerUpdated, Role: e.Role, Ledger: maps.Clone(r.state.Ledger)})
		}
	}
}

func (r *Room) broadcastMembers() {
	r.broadcast(Event{Type: EvtMemberCount, Members: len(r.members)})
}

func (r *Room) broadcast(ev Event) {
	ev.Code = r.code
	ev.Version = r.version
	for id, ch := range r.members {
		r.sendTo(id, ch, ev)
	}
}

func (r *Room) sendTo(id ConnID, ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
		// ok
	default:
		// Member is slow/full - drop this event for them, keep the membership.
		r.log.Debug("outbox full, dropping event",
			zap.String("conn", string(id)),
			zap.String("event", string(ev.Type)))
	}
}

func (r *Room) view() View {
	return View{
		Code:       r.code,
		Version:    r.version,
		Host:       r.host,
		NumMembers: len(r.members),
		InProgress: r.state.InProgress,
		Roles:      slices.Clone(r.state.Roles),
		Available:  r.state.AvailableRoles(),
		Ledger:     maps.Clone(r.state.Ledger),
	}
}
