package handler

import (
	"time"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/system"
	id "tokenledger/pkg/domain"
	"tokenledger/pkg/platform/audit"
)

type accountResponse struct {
	Account          string     `json:"account"`
	Username         string     `json:"username"`
	ProfileType      int        `json:"profile_type"`
	RegisteredAt     time.Time  `json:"registered_at"`
	TransactionCount uint64     `json:"transaction_count"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

func toAccountResponse(a *models.Account) accountResponse {
	resp := accountResponse{
		Account:          a.ID.String(),
		Username:         a.Username,
		ProfileType:      a.ProfileType,
		RegisteredAt:     a.RegisteredAt,
		TransactionCount: a.TransactionCount,
	}
	if !a.LastActivityAt.IsZero() {
		at := a.LastActivityAt
		resp.LastActivityAt = &at
	}
	return resp
}

type transferResponse struct {
	TxID                 string `json:"tx_id"`
	Sender               string `json:"sender"`
	Recipient            string `json:"recipient"`
	Amount               string `json:"amount"`
	AmountDisplay        string `json:"amount_display"`
	Fee                  string `json:"fee"`
	FeeDisplay           string `json:"fee_display"`
	Net                  string `json:"net"`
	NetDisplay           string `json:"net_display"`
	SenderBalance        string `json:"sender_balance"`
	SenderBalanceDisplay string `json:"sender_balance_display"`
}

func toTransferResponse(r *models.TransferResult) transferResponse {
	return transferResponse{
		TxID:                 r.TxID.String(),
		Sender:               r.Sender.String(),
		Recipient:            r.Recipient.String(),
		Amount:               id.FormatAmount(r.Amount),
		AmountDisplay:        id.FormatUnits(r.Amount),
		Fee:                  id.FormatAmount(r.Fee),
		FeeDisplay:           id.FormatUnits(r.Fee),
		Net:                  id.FormatAmount(r.Net),
		NetDisplay:           id.FormatUnits(r.Net),
		SenderBalance:        id.FormatAmount(r.SenderBalance),
		SenderBalanceDisplay: id.FormatUnits(r.SenderBalance),
	}
}

type swapResponse struct {
	TxID                string `json:"tx_id"`
	Account             string `json:"account"`
	Kind                string `json:"kind"`
	LocalAmount         string `json:"local_amount"`
	LocalAmountDisplay  string `json:"local_amount_display"`
	CryptoAmount        string `json:"crypto_amount"`
	CryptoAmountDisplay string `json:"crypto_amount_display"`
	Rate                string `json:"rate"`
	RateDisplay         string `json:"rate_display"`
	Balance             string `json:"balance"`
	BalanceDisplay      string `json:"balance_display"`
}

func toSwapResponse(r *models.SwapResult) swapResponse {
	return swapResponse{
		TxID:                r.TxID.String(),
		Account:             r.Account.String(),
		Kind:                string(r.Kind),
		LocalAmount:         id.FormatAmount(r.LocalAmount),
		LocalAmountDisplay:  id.FormatUnits(r.LocalAmount),
		CryptoAmount:        id.FormatAmount(r.CryptoAmount),
		CryptoAmountDisplay: id.FormatUnits(r.CryptoAmount),
		Rate:                id.FormatAmount(r.Rate),
		RateDisplay:         id.FormatUnits(r.Rate),
		Balance:             id.FormatAmount(r.Balance),
		BalanceDisplay:      id.FormatUnits(r.Balance),
	}
}

type withdrawalResponse struct {
	TxID           string `json:"tx_id"`
	Account        string `json:"account"`
	Target         string `json:"target"`
	Amount         string `json:"amount"`
	AmountDisplay  string `json:"amount_display"`
	Fee            string `json:"fee"`
	FeeDisplay     string `json:"fee_display"`
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
}

func toWithdrawalResponse(r *models.WithdrawalResult) withdrawalResponse {
	return withdrawalResponse{
		TxID:           r.TxID.String(),
		Account:        r.Account.String(),
		Target:         r.Target.String(),
		Amount:         id.FormatAmount(r.Amount),
		AmountDisplay:  id.FormatUnits(r.Amount),
		Fee:            id.FormatAmount(r.Fee),
		FeeDisplay:     id.FormatUnits(r.Fee),
		Balance:        id.FormatAmount(r.Balance),
		BalanceDisplay: id.FormatUnits(r.Balance),
	}
}

type creditResponse struct {
	TxID           string `json:"tx_id"`
	Account        string `json:"account"`
	Amount         string `json:"amount"`
	AmountDisplay  string `json:"amount_display"`
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
}

func toCreditResponse(r *models.CreditResult) creditResponse {
	return creditResponse{
		TxID:           r.TxID.String(),
		Account:        r.Account.String(),
		Amount:         id.FormatAmount(r.Amount),
		AmountDisplay:  id.FormatUnits(r.Amount),
		Balance:        id.FormatAmount(r.Balance),
		BalanceDisplay: id.FormatUnits(r.Balance),
	}
}

// amountResponse answers balance and daily-limit queries.
type amountResponse struct {
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}

type rateResponse struct {
	Rate        string `json:"rate"`
	RateDisplay string `json:"rate_display"`
}

type availabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type systemResponse struct {
	Active             bool      `json:"active"`
	Owner              string    `json:"owner"`
	OracleRef          string    `json:"oracle_ref"`
	UserCount          uint64    `json:"user_count"`
	TotalSupply        string    `json:"total_supply"`
	TotalSupplyDisplay string    `json:"total_supply_display"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toSystemResponse(s *system.Status) systemResponse {
	return systemResponse{
		Active:             s.State.Active,
		Owner:              s.State.Owner.String(),
		OracleRef:          s.State.OracleRef,
		UserCount:          s.State.UserCount,
		TotalSupply:        id.FormatAmount(s.TotalSupply),
		TotalSupplyDisplay: id.FormatUnits(s.TotalSupply),
		UpdatedAt:          s.State.UpdatedAt,
	}
}

type transactionResponse struct {
	TxID       string    `json:"tx_id"`
	Account    string    `json:"account"`
	Kind       string    `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`
}

type eventResponse struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
	Account      string    `json:"account,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	TxID         string    `json:"tx_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Net          string    `json:"net,omitempty"`
	Fee          string    `json:"fee,omitempty"`
	LocalAmount  string    `json:"local_amount,omitempty"`
	Rate         string    `json:"rate,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

func toEventsResponse(events []audit.Event) eventsResponse {
	resp := eventsResponse{Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			ID:           e.ID.String(),
			Action:       string(e.Action),
			Category:     string(e.Category),
			Timestamp:    e.Timestamp,
			Account:      e.AccountID,
			Counterparty: e.Counterparty,
			Actor:        e.ActorID,
			TxID:         e.TxID,
			Amount:       e.Amount,
			Net:          e.Net,
			Fee:          e.Fee,
			LocalAmount:  e.LocalAmount,
			Rate:         e.Rate,
			Detail:       e.Detail,
		})
	}
	return resp
}
