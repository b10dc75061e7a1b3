package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/room"
)

// Connect records a live connection and the outbox its events go to. The
// transport keeps ownership of the outbox and must keep draining it until
// Disconnect returns.
func (h *Hub) Connect(id room.ConnID, outbox chan<- room.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[id] = &member{outbox: outbox}
	h.log.Debug("connection registered", zap.String("conn", string(id)))
}

// Join adds a connected id to the room under code. Joining the room the
// connection is already in re-associates it.
func (h *Hub) Join(ctx context.Context, code string, id room.ConnID) (err error) {
	ctx, span := h.startSpan(ctx, "hub.Join", code)
	defer func() { endSpan(span, err) }()

	h.mu.RLock()
	m, known := h.conns[id]
	r, found := h.rooms[code]
	var current *room.Room
	var outbox chan<- room.Event
	if known {
		current, outbox = m.room, m.outbox
	}
	h.mu.RUnlock()

	switch {
	case !known:
		return apperr.ErrUnknownConnection
	case !found:
		return apperr.ErrRoomNotFound
	case current != nil && current != r && !current.Closed():
		return apperr.ErrAlreadyInRoom
	}

	if err := r.Join(ctx, id, outbox); err != nil {
		return err
	}

	h.mu.Lock()
	if m, ok := h.conns[id]; ok {
		m.room = r
	}
	h.mu.Unlock()

	h.log.Info("joined room", zap.String("code", code), zap.String("conn", string(id)))
	return nil
}

// Leave takes id out of its room but keeps the connection registered.
func (h *Hub) Leave(ctx context.Context, id room.ConnID) error {
	h.mu.Lock()
	m, ok := h.conns[id]
	var r *room.Room
	if ok {
		r = m.room
		m.room = nil
	}
	h.mu.Unlock()

	if !ok {
		return apperr.ErrUnknownConnection
	}
	h.leave(ctx, id, r)
	return nil
}

// Disconnect forgets the connection and removes it from its room. A host
// leaving a room that has not started closes that room.
func (h *Hub) Disconnect(ctx context.Context, id room.ConnID) {
	h.mu.Lock()
	m, ok := h.conns[id]
	delete(h.conns, id)
	var r *room.Room
	if ok {
		r = m.room
	}
	h.mu.Unlock()

	h.log.Debug("connection closed", zap.String("conn", string(id)))
	h.leave(ctx, id, r)
}

func (h *Hub) leave(ctx context.Context, id room.ConnID, r *room.Room) {
	if r == nil {
		return
	}

	ctx, span := h.startSpan(ctx, "hub.Leave", r.Code())
	res, err := r.Leave(ctx, id)
	endSpan(span, err)
	if err != nil {
		// The room already stopped; nothing left to leave.
		h.log.Debug("leave on closed room", zap.String("code", r.Code()), zap.Error(err))
		return
	}
	if res.TornDown {
		h.log.Info("host left before start, room closed",
			zap.String("code", r.Code()),
			zap.String("host", string(id)))
	}
}
