package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/hub"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/room"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/types"
	wire "github.com/DoyleJ11/carbon-ledger-backend/pkg/types"
)

const readLimit = 4096

type Options struct {
	OutboxSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	return o
}

type client struct {
	id   room.ConnID
	conn *websocket.Conn
	out  chan room.Event
	hub  *hub.Hub
	log  *zap.Logger
	opts Options
}

// Handler upgrades the request and serves one connection until either side
// goes away. The connection is known to the hub for exactly that long.
func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(readLimit)

		c := &client{
			id:   room.ConnID(uuid.NewString()),
			conn: conn,
			out:  make(chan room.Event, opts.OutboxSize),
			hub:  h,
			opts: opts,
		}
		c.log = log.With(zap.String("conn", string(c.id)))

		// The outbox is never closed: rooms may still hold it for a moment
		// after Disconnect, and the writer stops on ctx instead.
		h.Connect(c.id, c.out)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.WriteTimeout)
			defer cancel()
			h.Disconnect(ctx, c.id)
		}()
		c.push(room.Event{Type: room.EvtWelcome, ConnID: c.id})
		c.log.Debug("connected")

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error { return c.writeLoop(ctx) })
		g.Go(func() error { return c.readLoop(ctx) })
		err = g.Wait()

		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			c.log.Debug("disconnected")
		default:
			if errors.Is(err, context.Canceled) {
				c.log.Debug("disconnected", zap.Error(err))
				return
			}
			c.log.Info("connection dropped", zap.Error(err))
		}
	}
}

// writeLoop is the only writer on the connection.
func (c *client) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := wsjson.Write(wctx, c.conn, types.FromEvent(ev))
			cancel()
			if err != nil {
				return fmt.Errorf("write %s: %w", ev.Type, err)
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// readLoop always returns a non-nil error so the writer is cancelled with it.
func (c *client) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail(apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidMessage, "bad json", err))
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *client) dispatch(ctx context.Context, msg types.ClientMessage) {
	var err error

	switch msg.Type {
	case wire.MsgCreateRoom:
		_, err = c.hub.CreateRoom(ctx, c.id)
	case wire.MsgJoinRoom:
		err = c.hub.Join(ctx, msg.Code, c.id)
	case wire.MsgLeaveRoom:
		if err = c.hub.Leave(ctx, c.id); err == nil {
			c.push(room.Event{Type: room.EvtLeft})
		}
	case wire.MsgStartSession:
		err = c.hub.StartSession(ctx, msg.Code, c.id)
	case wire.MsgClaimRole:
		var acct engine.Account
		if acct, err = c.hub.ClaimRole(ctx, msg.Code, msg.Role); err == nil {
			c.push(room.Event{
				Type:    room.EvtRoleClaimed,
				Code:    msg.Code,
				Role:    engine.NormalizeRole(msg.Role),
				Account: &acct,
			})
		}
	case wire.MsgTransfer:
		_, err = c.hub.Transfer(ctx, msg.Code, msg.Role, msg.Resource, string(msg.Amount))
	case wire.MsgEndSession:
		err = c.hub.EndSession(ctx, msg.Code)
	default:
		err = apperr.New(apperr.KindValidationFailed, apperr.CodeInvalidMessage, "unknown type "+msg.Type)
	}

	if err != nil {
		c.log.Debug("request rejected", zap.String("type", msg.Type), zap.Error(err))
		c.fail(err)
	}
}

func (c *client) fail(err error) {
	reason := err.Error()
	if apperr.KindOf(err) == apperr.KindInternal {
		reason = "internal error"
	}
	c.push(room.Event{
		Type:    room.EvtError,
		ErrCode: string(apperr.CodeOf(err)),
		Reason:  reason,
	})
}

// push queues a reply for this connection only. Like room broadcasts it
// never blocks; a client that stopped reading loses the reply.
func (c *client) push(ev room.Event) {
	select {
	case c.out <- ev:
	default:
		c.log.Debug("outbox full, dropping reply", zap.String("event", string(ev.Type)))
	}
}
