package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
)

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return Event{} // unreachable
	}
}

// recvUntil drains events until one of the wanted type shows up.
func recvUntil(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	for {
		ev := recvEvent(t, ch, 500*time.Millisecond)
		if ev.Type == want {
			return ev
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event within %v, but got: %+v", within, ev)
	case <-time.After(within):
		// good: no event
	}
}

type closeRecorder struct {
	mu       sync.Mutex
	calls    int
	released []ConnID
}

func (c *closeRecorder) onClose(_ *Room, released []ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.released = append(c.released, released...)
}

func (c *closeRecorder) snapshot() (int, []ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, append([]ConnID(nil), c.released...)
}

func newTestRoom(t *testing.T) (*Room, chan Event, *closeRecorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &closeRecorder{}
	hostOut := make(chan Event, 16)
	r := New(ctx, "123456", "host", hostOut, engine.DefaultRules(), nil, rec.onClose)

	created := recvEvent(t, hostOut, 100*time.Millisecond)
	require.Equal(t, EvtRoomCreated, created.Type)
	require.Equal(t, "123456", created.Code)
	return r, hostOut, rec
}

// join adds a member and drains its joined + member_count events.
func join(t *testing.T, r *Room, id ConnID) chan Event {
	t.Helper()
	out := make(chan Event, 16)
	require.NoError(t, r.Join(context.Background(), id, out))
	require.Equal(t, EvtJoined, recvEvent(t, out, 100*time.Millisecond).Type)
	require.Equal(t, EvtMemberCount, recvEvent(t, out, 100*time.Millisecond).Type)
	return out
}

func TestRoom_JoinBroadcastsMemberCount(t *testing.T) {
	r, hostOut, _ := newTestRoom(t)

	bOut := make(chan Event, 16)
	require.NoError(t, r.Join(context.Background(), "b", bOut))

	joined := recvEvent(t, bOut, 100*time.Millisecond)
	assert.Equal(t, EvtJoined, joined.Type)
	assert.Equal(t, 2, joined.Members)

	count := recvEvent(t, hostOut, 100*time.Millisecond)
	assert.Equal(t, EvtMemberCount, count.Type)
	assert.Equal(t, 2, count.Members)
	assert.Equal(t, 1, count.Version)

	// Joining again is a re-association, not a second membership.
	require.NoError(t, r.Join(context.Background(), "b", bOut))
	recvUntil(t, bOut, EvtJoined)
	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, view.NumMembers)
}

func TestRoom_StartSession(t *testing.T) {
	r, hostOut, _ := newTestRoom(t)
	bOut := join(t, r, "b")
	join(t, r, "c")

	err := r.Start(context.Background(), "b")
	require.ErrorIs(t, err, apperr.ErrNotHost)
	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.False(t, view.InProgress)
	assert.Empty(t, view.Ledger)

	require.NoError(t, r.Start(context.Background(), "host"))

	started := recvUntil(t, bOut, EvtSessionStarted)
	assert.Equal(t, 3, started.Players)
	assert.Equal(t, []engine.Role{"玩家1", "玩家2", "關主"}, started.Roles)

	ledger := recvUntil(t, hostOut, EvtLedgerUpdated)
	assert.Equal(t, engine.Account{Money: 9999, Carbon: 999}, ledger.Ledger[engine.Adjudicator])

	// A second start, from anyone, is reported as already started.
	assert.ErrorIs(t, r.Start(context.Background(), "host"), apperr.ErrAlreadyStarted)
	assert.ErrorIs(t, r.Start(context.Background(), "b"), apperr.ErrAlreadyStarted)

	// Late joins are rejected.
	err = r.Join(context.Background(), "late", make(chan Event, 1))
	assert.ErrorIs(t, err, apperr.ErrGameInProgress)
}

func TestRoom_TooFewMembers(t *testing.T) {
	r, _, _ := newTestRoom(t)

	assert.ErrorIs(t, r.Start(context.Background(), "host"), apperr.ErrTooFewMembers)
	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.False(t, view.InProgress)
}

func TestRoom_ClaimAndTransfer(t *testing.T) {
	r, hostOut, _ := newTestRoom(t)
	bOut := join(t, r, "b")
	require.NoError(t, r.Start(context.Background(), "host"))
	initial := recvUntil(t, bOut, EvtLedgerUpdated)
	assert.Equal(t, int64(200), initial.Ledger["玩家1"].Money)

	acct, err := r.Claim(context.Background(), "玩家1")
	require.NoError(t, err)
	assert.Equal(t, engine.Account{Money: 200, Carbon: 5}, acct)

	taken := recvUntil(t, hostOut, EvtRoleTaken)
	assert.Equal(t, engine.Role("玩家1"), taken.Role)

	_, err = r.Claim(context.Background(), "玩家1")
	assert.ErrorIs(t, err, apperr.ErrRoleUnavailable)

	snap, err := r.Transfer(context.Background(), "玩家1", engine.ResourceMoney, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(250), snap.Ledger["玩家1"].Money)
	updated := recvUntil(t, bOut, EvtLedgerUpdated)
	assert.Equal(t, int64(250), updated.Ledger["玩家1"].Money)
	assert.Equal(t, int64(9949), updated.Ledger[engine.Adjudicator].Money)

	_, err = r.Transfer(context.Background(), "nobody", engine.ResourceMoney, 50)
	assert.ErrorIs(t, err, apperr.ErrInvalidTarget)
}

func TestRoom_HostLeavesBeforeStart_TearsDown(t *testing.T) {
	r, _, rec := newTestRoom(t)
	bOut := join(t, r, "b")

	res, err := r.Leave(context.Background(), "host")
	require.NoError(t, err)
	assert.True(t, res.TornDown)

	count := recvUntil(t, bOut, EvtMemberCount)
	assert.Equal(t, 1, count.Members)
	recvUntil(t, bOut, EvtHostDisconnected)

	calls, released := rec.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, []ConnID{"b"}, released)

	<-r.Done()
	_, err = r.View(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestRoom_HostLeavesAfterStart_Survives(t *testing.T) {
	r, _, rec := newTestRoom(t)
	bOut := join(t, r, "b")
	require.NoError(t, r.Start(context.Background(), "host"))

	res, err := r.Leave(context.Background(), "host")
	require.NoError(t, err)
	assert.False(t, res.TornDown)

	count := recvUntil(t, bOut, EvtMemberCount)
	assert.Equal(t, 1, count.Members)

	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.True(t, view.InProgress)
	assert.Equal(t, 1, view.NumMembers)

	calls, _ := rec.snapshot()
	assert.Zero(t, calls)
}

func TestRoom_LeaveUnknownIsNoop(t *testing.T) {
	r, hostOut, _ := newTestRoom(t)

	res, err := r.Leave(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, res.WasMember)
	recvNoEvent(t, hostOut, 50*time.Millisecond)
}

func TestRoom_End(t *testing.T) {
	r, hostOut, rec := newTestRoom(t)
	join(t, r, "b")
	require.NoError(t, r.Start(context.Background(), "host"))

	view, err := r.End(context.Background())
	require.NoError(t, err)
	assert.Len(t, view.Ledger, 2)

	recvUntil(t, hostOut, EvtGameOver)

	calls, released := rec.snapshot()
	assert.Equal(t, 1, calls)
	assert.ElementsMatch(t, []ConnID{"host", "b"}, released)

	_, err = r.End(context.Background())
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestRoom_DropsEventsForSlowMember(t *testing.T) {
	r, _, _ := newTestRoom(t)

	slow := make(chan Event) // unbuffered and never read
	require.NoError(t, r.Join(context.Background(), "slow", slow))

	// The room keeps serving requests and keeps the member.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Join(context.Background(), ConnID(fmt.Sprintf("x%d", i)), make(chan Event, 16)))
	}
	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, view.NumMembers)
}

func TestRoom_ShutdownReleasesMembers(t *testing.T) {
	r, hostOut, rec := newTestRoom(t)
	join(t, r, "b")
	recvEvent(t, hostOut, 100*time.Millisecond) // member_count

	r.Shutdown()
	<-r.Done()

	recvNoEvent(t, hostOut, 50*time.Millisecond)
	calls, released := rec.snapshot()
	assert.Equal(t, 1, calls)
	assert.ElementsMatch(t, []ConnID{"host", "b"}, released)
	assert.True(t, r.Closed())
}

func TestRoom_ConcurrentClaimsAreExclusive(t *testing.T) {
	r, _, _ := newTestRoom(t)
	join(t, r, "b")
	require.NoError(t, r.Start(context.Background(), "host"))

	const contenders = 16
	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Claim(context.Background(), engine.Adjudicator)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrRoleUnavailable)
	}
	assert.Equal(t, 1, wins)

	view, err := r.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []engine.Role{"玩家1"}, view.Available)
}

func TestRoom_RequestHonoursContext(t *testing.T) {
	r, _, _ := newTestRoom(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.View(ctx)
	// Either the room answered first or the cancelled context won; never a hang.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
