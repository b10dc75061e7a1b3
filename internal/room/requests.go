package room

import (
	"context"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
)

// A room that has stopped answers every request with ErrRoomNotFound, so
// callers holding a stale pointer never block.

func (r *Room) Join(ctx context.Context, conn ConnID, outbox chan<- Event) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, Join{Conn: conn, Outbox: outbox, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, r, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (r *Room) Leave(ctx context.Context, conn ConnID) (LeaveResult, error) {
	reply := make(chan LeaveResult, 1)
	if err := r.send(ctx, Leave{Conn: conn, Reply: reply}); err != nil {
		return LeaveResult{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) Start(ctx context.Context, requester ConnID) error {
	_, err := r.apply(ctx, requester, engine.Command{Type: engine.CmdStartSession})
	return err
}

func (r *Room) Claim(ctx context.Context, role engine.Role) (engine.Account, error) {
	res, err := r.apply(ctx, "", engine.Command{Type: engine.CmdClaimRole, Role: role})
	return res.Account, err
}

// Transfer returns the ledger exactly as this transfer left it.
func (r *Room) Transfer(ctx context.Context, target engine.Role, resource engine.Resource, amount int64) (Snapshot, error) {
	res, err := r.apply(ctx, "", engine.Command{
		Type:     engine.CmdTransfer,
		Role:     target,
		Resource: resource,
		Amount:   amount,
	})
	return res.Ledger, err
}

// End broadcasts game_over, stops the room and returns its final view.
func (r *Room) End(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.send(ctx, End{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, r, reply)
}

func (r *Room) apply(ctx context.Context, requester ConnID, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	if err := r.send(ctx, FromClient{Requester: requester, Cmd: cmd, Reply: reply}); err != nil {
		return Result{}, err
	}
	res, err := await(ctx, r, reply)
	if err != nil {
		return Result{}, err
	}
	if res.Err != nil {
		return Result{}, res.Err
	}
	return res, nil
}

func (r *Room) send(ctx context.Context, m Msg) error {
	select {
	case <-r.done:
		return apperr.ErrRoomNotFound
	default:
	}

	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return apperr.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		// The room replies before it exits, so a reply may already be waiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, apperr.ErrRoomNotFound
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
