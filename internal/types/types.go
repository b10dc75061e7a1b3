package types

import (
	"bytes"
	"encoding/json"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/room"
)

type ClientMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Role     string `json:"role,omitempty"`
	Resource string `json:"resource,omitempty"`
	Amount   Amount `json:"amount,omitempty"`
}

// Amount keeps the raw text of a transfer amount. Clients send it either as
// a JSON number or as the string typed into a form; parsing and validation
// happen in the engine.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

type ServerMessage struct {
	Type      string          `json:"type"`
	Code      string          `json:"code,omitempty"`
	Version   int             `json:"version,omitempty"`
	ConnID    string          `json:"conn_id,omitempty"`
	Members   int             `json:"members,omitempty"`
	Players   int             `json:"player_count,omitempty"`
	Role      engine.Role     `json:"role,omitempty"`
	Roles     []engine.Role   `json:"roles,omitempty"`
	Account   *engine.Account `json:"account,omitempty"`
	Ledger    engine.Ledger   `json:"ledger,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func FromEvent(ev room.Event) ServerMessage {
	return ServerMessage{
		Type:      string(ev.Type),
		Code:      ev.Code,
		Version:   ev.Version,
		ConnID:    string(ev.ConnID),
		Members:   ev.Members,
		Players:   ev.Players,
		Role:      ev.Role,
		Roles:     ev.Roles,
		Account:   ev.Account,
		Ledger:    ev.Ledger,
		ErrorCode: ev.ErrCode,
		Error:     ev.Reason,
	}
}
