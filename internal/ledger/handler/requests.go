package handler

import (
	"strings"

	"github.com/holiman/uint256"

	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

// Amounts travel as base-unit decimal strings. Parsed values are kept in
// unexported fields so handlers never re-parse.

type registerAccountRequest struct {
	Account     string `json:"account"`
	Username    string `json:"username"`
	ProfileType int    `json:"profile_type"`

	account id.AccountID
}

func (r *registerAccountRequest) Validate() error {
	account, err := id.ParseAccountID(r.Account)
	if err != nil {
		return err
	}
	if r.ProfileType < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "profile_type must not be negative")
	}
	r.account = account
	return nil
}

type setOracleRequest struct {
	Ref string `json:"ref"`
}

func (r *setOracleRequest) Validate() error {
	r.Ref = strings.TrimSpace(r.Ref)
	if r.Ref == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "ref is required")
	}
	return nil
}

type creditRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`

	account id.AccountID
	amount  *uint256.Int
}

func (r *creditRequest) Validate() error {
	var err error
	if r.account, err = id.ParseAccountID(r.Account); err != nil {
		return err
	}
	r.amount, err = id.ParseAmount(r.Amount)
	return err
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`

	recipient id.AccountID
	amount    *uint256.Int
}

func (r *transferRequest) Validate() error {
	var err error
	if r.recipient, err = id.ParseAccountID(r.Recipient); err != nil {
		return err
	}
	r.amount, err = id.ParseAmount(r.Amount)
	return err
}

type swapRequest struct {
	Amount string `json:"amount"`

	amount *uint256.Int
}

func (r *swapRequest) Validate() error {
	var err error
	r.amount, err = id.ParseAmount(r.Amount)
	return err
}

type withdrawRequest struct {
	Target string `json:"target"`
	Amount string `json:"amount"`

	target id.AccountID
	amount *uint256.Int
}

func (r *withdrawRequest) Validate() error {
	var err error
	if r.target, err = id.ParseAccountID(r.Target); err != nil {
		return err
	}
	r.amount, err = id.ParseAmount(r.Amount)
	return err
}
