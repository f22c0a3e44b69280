package handler

import (
	"net/http"

	"tokenledger/internal/registry"
	"tokenledger/pkg/platform/httputil"
	"tokenledger/pkg/requestcontext"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.registry.Register(ctx, requestcontext.Caller(ctx), registry.RegisterRequest{
		Account:     req.account,
		Username:    req.Username,
		ProfileType: req.ProfileType,
	})
	if err != nil {
		h.fail(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.admin.Pause(ctx, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "pause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.admin.Unpause(ctx, requestcontext.Caller(ctx)); err != nil {
		h.fail(ctx, w, "unpause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[setOracleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.admin.SetOracle(ctx, requestcontext.Caller(ctx), req.Ref); err != nil {
		h.fail(ctx, w, "set_oracle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[creditRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.admin.CreditForOps(ctx, requestcontext.Caller(ctx), req.account, req.amount)
	if err != nil {
		h.fail(ctx, w, "credit_for_ops", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCreditResponse(res))
}
