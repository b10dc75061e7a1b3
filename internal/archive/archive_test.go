package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
)

func TestNewSessionRecord(t *testing.T) {
	ended := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	sum := Summary{
		Code:        "004211",
		PlayerCount: 3,
		EndedAt:     ended,
		Roles:       []engine.Role{"玩家1", "玩家2", "關主"},
		Ledger: engine.Ledger{
			"玩家1": {Money: 250, Carbon: 5},
			"玩家2": {Money: 200, Carbon: 5},
			"關主":  {Money: 9949, Carbon: 999},
		},
	}

	rec := NewSessionRecord(sum)

	assert.Equal(t, "004211", rec.Code)
	assert.Equal(t, ended, rec.EndedAt)
	assert.Equal(t, int64(10399), rec.TotalMoney)
	assert.Equal(t, int64(1009), rec.TotalCarbon)
	require.Len(t, rec.Accounts, 3)
	assert.Equal(t, AccountRecord{Position: 0, Role: "玩家1", Money: 250, Carbon: 5}, rec.Accounts[0])
	assert.Equal(t, AccountRecord{Position: 2, Role: "關主", Money: 9949, Carbon: 999}, rec.Accounts[2])
}

func TestNop(t *testing.T) {
	var a Archiver = Nop{}
	assert.NoError(t, a.Archive(context.Background(), Summary{}))
	assert.NoError(t, a.Close())
}
