// Package hub is the process-wide room registry and membership coordinator.
// It maps room codes to running rooms and connections to the room they are
// in. Room state itself lives in each room's goroutine; the hub lock is only
// held for map access and never while waiting on a room.
package hub

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/archive"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/room"
)

const (
	tracerName = "github.com/DoyleJ11/carbon-ledger-backend/internal/hub"

	// maxCodeAttempts bounds the collision retry loop; with six digits it
	// is only reached when the code space is close to full.
	maxCodeAttempts = 100
)

type member struct {
	outbox chan<- room.Event
	room   *room.Room // nil while not in a room
}

type Hub struct {
	log      *zap.Logger
	tracer   trace.Tracer
	rules    engine.Rules
	codes    CodeGenerator
	archiver archive.Archiver
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.RWMutex
	rooms map[string]*room.Room
	conns map[room.ConnID]*member
}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) { h.log = log }
}

func WithRules(rules engine.Rules) Option {
	return func(h *Hub) { h.rules = rules }
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(h *Hub) { h.codes = gen }
}

// WithArchiver sets where finished sessions are recorded.
func WithArchiver(a archive.Archiver) Option {
	return func(h *Hub) { h.archiver = a }
}

func WithTracer(t trace.Tracer) Option {
	return func(h *Hub) { h.tracer = t }
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		log:      zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		rules:    engine.DefaultRules(),
		codes:    NumericCodes(6),
		archiver: archive.Nop{},
		ctx:      ctx,
		cancel:   cancel,
		rooms:    make(map[string]*room.Room),
		conns:    make(map[room.ConnID]*member),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("hub")
	return h
}

// CreateRoom opens a room hosted by id under a fresh code. The host gets
// room_created on its outbox.
func (h *Hub) CreateRoom(ctx context.Context, id room.ConnID) (code string, err error) {
	_, span := h.tracer.Start(ctx, "hub.CreateRoom")
	defer func() { endSpan(span, err) }()

	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[id]
	if !ok {
		return "", apperr.ErrUnknownConnection
	}
	if m.room != nil && !m.room.Closed() {
		return "", apperr.ErrAlreadyInRoom
	}

	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return "", apperr.New(apperr.KindInternal, apperr.CodeCodeSpaceExhausted, "could not find a free room code")
		}
		c, err := h.codes()
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "failed to generate code", err)
		}
		if _, taken := h.rooms[c]; !taken {
			code = c
			break
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}

	r := room.New(h.ctx, code, id, m.outbox, h.rules, h.log, h.release)
	h.rooms[code] = r
	m.room = r

	span.SetAttributes(attribute.String("room.code", code))
	h.log.Info("room created", zap.String("code", code), zap.String("host", string(id)))
	return code, nil
}

// Lookup returns the live room registered under code.
func (h *Hub) Lookup(code string) (*room.Room, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[code]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	return r, nil
}

// Delete removes the room silently. Deleting an absent code is a no-op.
func (h *Hub) Delete(code string) {
	h.mu.Lock()
	r, ok := h.rooms[code]
	delete(h.rooms, code)
	h.mu.Unlock()

	if ok {
		r.Shutdown()
		h.log.Info("room deleted", zap.String("code", code))
	}
}

// NumRooms reports how many rooms are live.
func (h *Hub) NumRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown stops every room.
func (h *Hub) Shutdown() {
	h.cancel()
}

// release runs on a room's goroutine when it stops. It only forgets r itself,
// so a recycled code registered since is left alone.
func (h *Hub) release(r *room.Room, released []room.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.rooms[r.Code()]; ok && cur == r {
		delete(h.rooms, r.Code())
	}
	for _, id := range released {
		if m, ok := h.conns[id]; ok && m.room == r {
			m.room = nil
		}
	}
	h.log.Debug("room released", zap.String("code", r.Code()), zap.Int("members", len(released)))
}

func (h *Hub) startSpan(ctx context.Context, name, code string) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("room.code", code)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
