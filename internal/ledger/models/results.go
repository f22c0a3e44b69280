package models

import (
	"github.com/holiman/uint256"

	id "tokenledger/pkg/domain"
)

type TransferResult struct {
	TxID             id.TxID
	Sender           id.AccountID
	Recipient        id.AccountID
	Amount           *uint256.Int
	Fee              *uint256.Int
	Net              *uint256.Int
	SenderBalance    *uint256.Int
	RecipientBalance *uint256.Int
}

type SwapResult struct {
	TxID         id.TxID
	Account      id.AccountID
	Kind         TxKind
	LocalAmount  *uint256.Int
	CryptoAmount *uint256.Int
	Rate         *uint256.Int
	Balance      *uint256.Int
}

type WithdrawalResult struct {
	TxID    id.TxID
	Account id.AccountID
	Target  id.AccountID
	Amount  *uint256.Int
	Fee     *uint256.Int
	Balance *uint256.Int
}

type CreditResult struct {
	TxID    id.TxID
	Account id.AccountID
	Amount  *uint256.Int
	Balance *uint256.Int
}
