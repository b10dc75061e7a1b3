package engine

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
)

const playerRolePrefix = "玩家"

func NewState(rules Rules) State {
	return State{
		Available: map[Role]bool{},
		Ledger:    Ledger{},
		Rules:     rules,
	}
}

// RoleNames returns players-1 numbered player roles followed by the
// adjudicator.
func RoleNames(players int) []Role {
	roles := make([]Role, 0, players)
	for i := 1; i < players; i++ {
		roles = append(roles, Role(fmt.Sprintf("%s%d", playerRolePrefix, i)))
	}
	return append(roles, Adjudicator)
}

// NormalizeRole folds user-typed role names onto the canonical spelling:
// NFC composition and full-width digits to ASCII, so "玩家１" is "玩家1".
func NormalizeRole(s string) Role {
	return Role(width.Fold.String(norm.NFC.String(strings.TrimSpace(s))))
}

func ParseResource(s string) (Resource, error) {
	switch r := Resource(strings.ToLower(strings.TrimSpace(s))); r {
	case ResourceMoney, ResourceCarbon:
		return r, nil
	default:
		return "", apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidAmount,
			fmt.Sprintf("unknown resource %q", s), nil)
	}
}

// ParseAmount accepts a signed base-10 integer. A negative amount moves
// resources from the target back to the adjudicator.
func ParseAmount(s string) (int64, error) {
	s = width.Fold.String(strings.TrimSpace(s))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidAmount,
			fmt.Sprintf("amount %q is not an integer", s), err)
	}
	return n, nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
