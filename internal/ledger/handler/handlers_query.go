package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/httputil"
	"tokenledger/pkg/requestcontext"
)

const maxEventLimit = 500

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r)
	if err != nil {
		h.fail(ctx, w, "get_profile", err)
		return
	}
	profile, err := h.registry.Profile(ctx, account)
	if err != nil {
		h.fail(ctx, w, "get_profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(profile))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r)
	if err != nil {
		h.fail(ctx, w, "get_balance", err)
		return
	}
	bal, err := h.ledger.Balance(ctx, account)
	if err != nil {
		h.fail(ctx, w, "get_balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{
		Account:       account.String(),
		Amount:        id.FormatAmount(bal),
		AmountDisplay: id.FormatUnits(bal),
	})
}

func (h *Handler) handleDailyLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r)
	if err != nil {
		h.fail(ctx, w, "get_daily_limit", err)
		return
	}
	remaining, err := h.ledger.RemainingDailyLimit(ctx, account)
	if err != nil {
		h.fail(ctx, w, "get_daily_limit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, amountResponse{
		Account:       account.String(),
		Amount:        id.FormatAmount(remaining),
		AmountDisplay: id.FormatUnits(remaining),
	})
}

// handleEvents lists an account's events. Only the account itself and the
// owner may read them.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := pathAccount(r)
	if err != nil {
		h.fail(ctx, w, "list_events", err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.fail(ctx, w, "list_events", err)
		return
	}

	caller := requestcontext.Caller(ctx)
	if caller != account {
		status, err := h.admin.Status(ctx)
		if err != nil {
			h.fail(ctx, w, "list_events", err)
			return
		}
		if caller != status.State.Owner {
			h.fail(ctx, w, "list_events", dErrors.New(dErrors.CodeUnauthorized, "events are visible to the account and the owner only"))
			return
		}
	}

	events, err := h.events.ListByAccount(ctx, account.String(), limit)
	if err != nil {
		h.fail(ctx, w, "list_events", dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventsResponse(events))
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rate, err := h.ledger.ExchangeRate(ctx)
	if err != nil {
		h.fail(ctx, w, "get_exchange_rate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rateResponse{
		Rate:        id.FormatAmount(rate),
		RateDisplay: id.FormatUnits(rate),
	})
}

func (h *Handler) handleUsernameAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")
	available, err := h.registry.IsUsernameAvailable(ctx, username)
	if err != nil {
		h.fail(ctx, w, "is_username_available", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, availabilityResponse{Username: username, Available: available})
}

func (h *Handler) handleSystem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.admin.Status(ctx)
	if err != nil {
		h.fail(ctx, w, "system_status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSystemResponse(status))
}

func (h *Handler) handleTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID, err := id.ParseTxID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get_transaction", err)
		return
	}
	tx, err := h.ledger.Transaction(ctx, txID)
	if err != nil {
		h.fail(ctx, w, "get_transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transactionResponse{
		TxID:       tx.ID.String(),
		Account:    tx.Account.String(),
		Kind:       string(tx.Kind),
		RecordedAt: tx.RecordedAt,
	})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return audit.DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return min(limit, maxEventLimit), nil
}
