package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/apperr"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/hub"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/types"
)

type roomResponse struct {
	Code       string        `json:"code"`
	Version    int           `json:"version"`
	Members    int           `json:"members"`
	InProgress bool          `json:"in_progress"`
	Roles      []engine.Role `json:"roles"`
	Available  []engine.Role `json:"available"`
}

type ledgerResponse struct {
	Code    string         `json:"code"`
	Version int            `json:"version"`
	Ledger  engine.Ledger  `json:"ledger"`
	Totals  engine.Account `json:"totals"`
}

type accountResponse struct {
	Code    string         `json:"code"`
	Role    engine.Role    `json:"role"`
	Account engine.Account `json:"account"`
}

type transferRequest struct {
	Role     string       `json:"role"`
	Resource string       `json:"resource"`
	Amount   types.Amount `json:"amount"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RoomView serves the lobby page: who is here and whether the game is on.
func RoomView(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.View(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{
			Code:       view.Code,
			Version:    view.Version,
			Members:    view.NumMembers,
			InProgress: view.InProgress,
			Roles:      nonNil(view.Roles),
			Available:  nonNil(view.Available),
		})
	}
}

func AvailableRoles(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.View(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]engine.Role{"available": nonNil(view.Available)})
	}
}

// Ledger serves the adjudicator's dashboard.
func Ledger(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.View(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		ledger := view.Ledger
		if ledger == nil {
			ledger = engine.Ledger{}
		}
		writeJSON(w, http.StatusOK, ledgerResponse{
			Code:    view.Code,
			Version: view.Version,
			Ledger:  ledger,
			Totals:  ledger.Totals(),
		})
	}
}

// RoleAccount serves one player's balance.
func RoleAccount(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := roleParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		view, err := h.View(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		acct, ok := view.Ledger[role]
		if !ok {
			writeError(w, log, apperr.ErrInvalidTarget)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{Code: view.Code, Role: role, Account: acct})
	}
}

func ClaimRole(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := roleParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		code := chi.URLParam(r, "code")
		acct, err := h.ClaimRole(r.Context(), code, string(role))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{Code: code, Role: role, Account: acct})
	}
}

func Transfer(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, log, apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidMessage, "invalid request body", err))
			return
		}
		code := chi.URLParam(r, "code")
		snap, err := h.Transfer(r.Context(), code, req.Role, req.Resource, string(req.Amount))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ledgerResponse{
			Code:    code,
			Version: snap.Version,
			Ledger:  snap.Ledger,
			Totals:  snap.Ledger.Totals(),
		})
	}
}

func EndSession(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.EndSession(r.Context(), chi.URLParam(r, "code")); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func roleParam(r *http.Request) (engine.Role, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "role"))
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidationFailed, apperr.CodeInvalidMessage, "invalid role", err)
	}
	return engine.NormalizeRole(raw), nil
}

func nonNil(roles []engine.Role) []engine.Role {
	if roles == nil {
		return []engine.Role{}
	}
	return roles
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, kind.HTTPStatus(), map[string]string{
		"code":  string(apperr.CodeOf(err)),
		"error": message,
	})
}
