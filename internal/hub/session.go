package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/archive"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/room"
)

// StartSession lets the host of code deal out roles and ledgers.
func (h *Hub) StartSession(ctx context.Context, code string, requester room.ConnID) (err error) {
	ctx, span := h.startSpan(ctx, "hub.StartSession", code)
	defer func() { endSpan(span, err) }()

	r, err := h.Lookup(code)
	if err != nil {
		return err
	}
	if err := r.Start(ctx, requester); err != nil {
		return err
	}

	h.log.Info("session started", zap.String("code", code))
	return nil
}

// ClaimRole takes role out of the available pool and returns its account.
func (h *Hub) ClaimRole(ctx context.Context, code, role string) (acct engine.Account, err error) {
	ctx, span := h.startSpan(ctx, "hub.ClaimRole", code)
	defer func() { endSpan(span, err) }()

	r, err := h.Lookup(code)
	if err != nil {
		return engine.Account{}, err
	}
	return r.Claim(ctx, engine.NormalizeRole(role))
}

// Transfer moves amount of resource from the adjudicator to target. A
// negative amount moves it the other way. The returned snapshot is the
// ledger right after this transfer.
func (h *Hub) Transfer(ctx context.Context, code, target, resource, amount string) (snap room.Snapshot, err error) {
	ctx, span := h.startSpan(ctx, "hub.Transfer", code)
	defer func() { endSpan(span, err) }()

	r, err := h.Lookup(code)
	if err != nil {
		return room.Snapshot{}, err
	}
	kind, err := engine.ParseResource(resource)
	if err != nil {
		return room.Snapshot{}, err
	}
	n, err := engine.ParseAmount(amount)
	if err != nil {
		return room.Snapshot{}, err
	}
	return r.Transfer(ctx, engine.NormalizeRole(target), kind, n)
}

// EndSession announces game_over, removes the room and archives the final
// ledger. Archive failures are logged, never returned.
func (h *Hub) EndSession(ctx context.Context, code string) (err error) {
	ctx, span := h.startSpan(ctx, "hub.EndSession", code)
	defer func() { endSpan(span, err) }()

	r, err := h.Lookup(code)
	if err != nil {
		return err
	}
	view, err := r.End(ctx)
	if err != nil {
		return err
	}
	h.log.Info("session ended", zap.String("code", code), zap.Bool("started", view.InProgress))

	if !view.InProgress {
		return nil
	}
	summary := archive.Summary{
		Code:        view.Code,
		PlayerCount: len(view.Roles),
		EndedAt:     time.Now().UTC(),
		Roles:       view.Roles,
		Ledger:      view.Ledger,
	}
	if err := h.archiver.Archive(ctx, summary); err != nil {
		h.log.Warn("archive session", zap.String("code", code), zap.Error(err))
	}
	return nil
}

func (h *Hub) View(ctx context.Context, code string) (room.View, error) {
	r, err := h.Lookup(code)
	if err != nil {
		return room.View{}, err
	}
	return r.View(ctx)
}
