package handler

import (
	"net/http"

	"tokenledger/pkg/platform/httputil"
	"tokenledger/pkg/requestcontext"
)

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[transferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.ledger.Transfer(ctx, requestcontext.Caller(ctx), req.recipient, req.amount)
	if err != nil {
		h.fail(ctx, w, "transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(res))
}

func (h *Handler) handleSwapLocalToCrypto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[swapRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.ledger.SwapLocalToCrypto(ctx, requestcontext.Caller(ctx), req.amount)
	if err != nil {
		h.fail(ctx, w, "swap_local_to_crypto", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSwapResponse(res))
}

func (h *Handler) handleSwapCryptoToLocal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[swapRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.ledger.SwapCryptoToLocal(ctx, requestcontext.Caller(ctx), req.amount)
	if err != nil {
		h.fail(ctx, w, "swap_crypto_to_local", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSwapResponse(res))
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[withdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.ledger.Withdraw(ctx, requestcontext.Caller(ctx), req.target, req.amount)
	if err != nil {
		h.fail(ctx, w, "withdraw", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWithdrawalResponse(res))
}
