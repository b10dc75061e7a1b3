package engine

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
)

type Role string

// Adjudicator is the counterparty of every transfer.
const Adjudicator Role = "關主"

type Resource string

const (
	ResourceMoney  Resource = "money"
	ResourceCarbon Resource = "carbon"
)

type Account struct {
	Money  int64 `json:"money"`
	Carbon int64 `json:"carbon"`
}

func (a Account) Get(r Resource) int64 {
	if r == ResourceCarbon {
		return a.Carbon
	}
	return a.Money
}

func (a *Account) set(r Resource, n int64) {
	switch r {
	case ResourceMoney:
		a.Money = n
	case ResourceCarbon:
		a.Carbon = n
	}
}

var errAmountOutOfRange = apperr.New(apperr.KindValidationFailed, apperr.CodeInvalidAmount,
	"amount would overflow a balance")

// addInt64 reports false instead of wrapping around.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

type Ledger map[Role]Account

// Totals sums every account in the ledger.
func (l Ledger) Totals() Account {
	var t Account
	for _, a := range l {
		t.Money += a.Money
		t.Carbon += a.Carbon
	}
	return t
}

type Rules struct {
	MinPlayers           int
	PlayerEndowment      Account
	AdjudicatorEndowment Account
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:           2,
		PlayerEndowment:      Account{Money: 200, Carbon: 5},
		AdjudicatorEndowment: Account{Money: 9999, Carbon: 999},
	}
}

type State struct {
	InProgress bool
	Roles      []Role // creation order, fixed once the session starts
	Available  map[Role]bool
	Ledger     Ledger
	Rules      Rules
}

type CommandType string

const (
	CmdStartSession CommandType = "StartSession"
	CmdClaimRole    CommandType = "ClaimRole"
	CmdTransfer     CommandType = "Transfer"
)

/*
	CmdStartSession -> EvtSessionStarted -> EvtLedgerUpdated
	CmdClaimRole    -> EvtRoleTaken
	CmdTransfer     -> EvtLedgerUpdated
*/

type Command struct {
	Type     CommandType
	Players  int  // StartSession: member count at the time of the request
	Role     Role // ClaimRole: role to claim, Transfer: target role
	Resource Resource
	Amount   int64
}

type EventType string

const (
	EvtSessionStarted EventType = "SessionStarted"
	EvtRoleTaken      EventType = "RoleTaken"
	EvtLedgerUpdated  EventType = "LedgerUpdated"
)

type Event struct {
	Type    EventType
	Role    Role
	Players int
}

// Apply validates cmd against s and returns the events it produced and the
// next state. On error the returned state is s, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartSession:
		if s.InProgress {
			return nil, s, apperr.ErrAlreadyStarted
		}
		if cmd.Players < max(s.Rules.MinPlayers, 2) {
			return nil, s, apperr.ErrTooFewMembers
		}

		newState := s.clone()
		newState.Roles = RoleNames(cmd.Players)
		newState.Ledger = make(Ledger, len(newState.Roles))
		newState.Available = make(map[Role]bool, len(newState.Roles))
		for _, role := range newState.Roles {
			if role == Adjudicator {
				newState.Ledger[role] = s.Rules.AdjudicatorEndowment
			} else {
				newState.Ledger[role] = s.Rules.PlayerEndowment
			}
			newState.Available[role] = true
		}
		newState.InProgress = true

		events := []Event{
			{Type: EvtSessionStarted, Players: cmd.Players},
			{Type: EvtLedgerUpdated},
		}
		return events, newState, nil

	case CmdClaimRole:
		if !s.Available[cmd.Role] {
			return nil, s, apperr.ErrRoleUnavailable
		}

		newState := s.clone()
		delete(newState.Available, cmd.Role)
		return []Event{{Type: EvtRoleTaken, Role: cmd.Role}}, newState, nil

	case CmdTransfer:
		if cmd.Resource != ResourceMoney && cmd.Resource != ResourceCarbon {
			return nil, s, apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidAmount,
				fmt.Sprintf("unknown resource %q", cmd.Resource), nil)
		}
		if _, ok := s.Ledger[cmd.Role]; !ok {
			return nil, s, apperr.ErrInvalidTarget
		}
		if _, ok := s.Ledger[Adjudicator]; !ok {
			return nil, s, apperr.ErrInvalidTarget
		}

		if cmd.Amount == math.MinInt64 {
			return nil, s, errAmountOutOfRange
		}

		newState := s.clone()
		// A self-transfer nets to zero and leaves the ledger as it is.
		if cmd.Role != Adjudicator {
			target := newState.Ledger[cmd.Role]
			adj := newState.Ledger[Adjudicator]
			t, okT := addInt64(target.Get(cmd.Resource), cmd.Amount)
			a, okA := addInt64(adj.Get(cmd.Resource), -cmd.Amount)
			if !okT || !okA {
				return nil, s, errAmountOutOfRange
			}
			target.set(cmd.Resource, t)
			adj.set(cmd.Resource, a)
			newState.Ledger[cmd.Role] = target
			newState.Ledger[Adjudicator] = adj
		}

		return []Event{{Type: EvtLedgerUpdated, Role: cmd.Role}}, newState, nil

	default:
		return nil, s, apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidMessage,
			fmt.Sprintf("unsupported command %q", cmd.Type), nil)
	}
}

func (s State) clone() State {
	c := s
	c.Roles = slices.Clone(s.Roles)
	c.Available = maps.Clone(s.Available)
	c.Ledger = maps.Clone(s.Ledger)
	return c
}

// AvailableRoles lists the unclaimed roles in creation order.
func (s State) AvailableRoles() []Role {
	out := make([]Role, 0, len(s.Available))
	for _, role := range s.Roles {
		if s.Available[role] {
			out = append(out, role)
		}
	}
	return out
}
