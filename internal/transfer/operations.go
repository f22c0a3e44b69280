package transfer

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"tokenledger/internal/balance"
	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/requestcontext"
)

const bpsDenominator = 10_000

// Transfer moves amount from sender to recipient. The recipient receives the
// amount less the fee; the fee leaves circulation.
func (e *Engine) Transfer(ctx context.Context, sender, recipient id.AccountID, amount *uint256.Int) (*models.TransferResult, error) {
	var (
		result *models.TransferResult
		event  audit.Event
	)
	err := e.execute(ctx, "transfer", sender, func(ctx context.Context) error {
		return e.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
			o := &op{now: requestcontext.Now(ctx), stores: st, caller: sender}
			err := runChecks(ctx, o,
				requireActive,
				requireRegistered,
				e.requireCooldownElapsed,
				requireRecipient(recipient),
				e.requireWithinBounds(amount),
				requireBalance(amount),
				e.reserveQuota(amount),
			)
			if err != nil {
				return err
			}

			fee := e.transferFee(amount)
			net := new(uint256.Int).Sub(amount, fee)

			ledger := balance.New(st.Balances)
			senderBal, err := ledger.Debit(ctx, sender, amount)
			if err != nil {
				return err
			}
			recipientBal, err := ledger.Balance(ctx, recipient)
			if err != nil {
				return err
			}
			if !net.IsZero() {
				if recipientBal, err = ledger.Credit(ctx, recipient, net); err != nil {
					return err
				}
			}

			txID, err := e.txids.Issue(ctx, st.TxIDs, sender, models.TxKindTransfer, o.now)
			if err != nil {
				return err
			}
			if err := e.finish(ctx, o, o.account, o.peer); err != nil {
				return err
			}

			result = &models.TransferResult{
				TxID:             txID,
				Sender:           sender,
				Recipient:        recipient,
				Amount:           new(uint256.Int).Set(amount),
				Fee:              fee,
				Net:              net,
				SenderBalance:    senderBal,
				RecipientBalance: recipientBal,
			}
			event = audit.Event{
				Action:       audit.ActionTransfer,
				AccountID:    sender.String(),
				Counterparty: recipient.String(),
				TxID:         txID.String(),
				Amount:       amount.Dec(),
				Net:          net.Dec(),
				Fee:          fee.Dec(),
				Timestamp:    o.now,
				RequestID:    requestcontext.RequestID(ctx),
			}
			return st.Events.Append(ctx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	e.metrics.AddFeesBurned(tokens(result.Fee))
	ports.LogAudit(ctx, e.logger, event)
	return result, nil
}

// SwapLocalToCrypto credits the token equivalent of localAmount at the
// current rate. The local-currency side is settled outside the ledger.
func (e *Engine) SwapLocalToCrypto(ctx context.Context, account id.AccountID, localAmount *uint256.Int) (*models.SwapResult, error) {
	var (
		result *models.SwapResult
		event  audit.Event
	)
	err := e.execute(ctx, "swap_local_to_crypto", account, func(ctx context.Context) error {
		return e.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
			o := &op{now: requestcontext.Now(ctx), stores: st, caller: account}
			err := runChecks(ctx, o,
				requireActive,
				requireRegistered,
				e.requireCooldownElapsed,
				requirePositive(localAmount),
				e.loadRate,
			)
			if err != nil {
				return err
			}

			crypto, overflow := new(uint256.Int).MulDivOverflow(localAmount, id.Unit(), o.rate)
			if overflow {
				return dErrors.New(dErrors.CodeValidation, "swap amount is too large")
			}
			if crypto.IsZero() {
				return dErrors.New(dErrors.CodeValidation, "swap amount is too small at the current rate")
			}

			bal, err := balance.New(st.Balances).Credit(ctx, account, crypto)
			if err != nil {
				return err
			}
			txID, err := e.txids.Issue(ctx, st.TxIDs, account, models.TxKindSwapLocalToCrypto, o.now)
			if err != nil {
				return err
			}
			if err := e.finish(ctx, o, o.account); err != nil {
				return err
			}

			result = &models.SwapResult{
				TxID:         txID,
				Account:      account,
				Kind:         models.TxKindSwapLocalToCrypto,
				LocalAmount:  new(uint256.Int).Set(localAmount),
				CryptoAmount: crypto,
				Rate:         o.rate,
				Balance:      bal,
			}
			event = swapEvent(ctx, audit.ActionSwapLocalToCrypto, result, o)
			return st.Events.Append(ctx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	ports.LogAudit(ctx, e.logger, event)
	return result, nil
}

// SwapCryptoToLocal debits cryptoAmount and reports the local-currency value
// owed at the current rate.
func (e *Engine) SwapCryptoToLocal(ctx context.Context, account id.AccountID, cryptoAmount *uint256.Int) (*models.SwapResult, error) {
	var (
		result *models.SwapResult
		event  audit.Event
	)
	err := e.execute(ctx, "swap_crypto_to_local", account, func(ctx context.Context) error {
		return e.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
			o := &op{now: requestcontext.Now(ctx), stores: st, caller: account}
			err := runChecks(ctx, o,
				requireActive,
				requireRegistered,
				e.requireCooldownElapsed,
				requirePositive(cryptoAmount),
				requireBalance(cryptoAmount),
				e.loadRate,
			)
			if err != nil {
				return err
			}

			local, overflow := new(uint256.Int).MulDivOverflow(cryptoAmount, o.rate, id.Unit())
			if overflow {
				return dErrors.New(dErrors.CodeValidation, "swap amount is too large")
			}
			if local.IsZero() {
				return dErrors.New(dErrors.CodeValidation, "swap amount is too small at the current rate")
			}

			bal, err := balance.New(st.Balances).Debit(ctx, account, cryptoAmount)
			if err != nil {
				return err
			}
			txID, err := e.txids.Issue(ctx, st.TxIDs, account, models.TxKindSwapCryptoToLocal, o.now)
			if err != nil {
				return err
			}
			if err := e.finish(ctx, o, o.account); err != nil {
				return err
			}

			result = &models.SwapResult{
				TxID:         txID,
				Account:      account,
				Kind:         models.TxKindSwapCryptoToLocal,
				LocalAmount:  local,
				CryptoAmount: new(uint256.Int).Set(cryptoAmount),
				Rate:         o.rate,
				Balance:      bal,
			}
			event = swapEvent(ctx, audit.ActionSwapCryptoToLocal, result, o)
			return st.Events.Append(ctx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	ports.LogAudit(ctx, e.logger, event)
	return result, nil
}

// Withdraw debits amount plus the flat withdrawal fee. Delivery to target is
// handled outside the ledger.
func (e *Engine) Withdraw(ctx context.Context, account, target id.AccountID, amount *uint256.Int) (*models.WithdrawalResult, error) {
	var (
		result *models.WithdrawalResult
		event  audit.Event
	)
	err := e.execute(ctx, "withdraw", account, func(ctx context.Context) error {
		return e.uow.RunInTx(ctx, func(ctx context.Context, st ports.Stores) error {
			o := &op{now: requestcontext.Now(ctx), stores: st, caller: account}
			fee := new(uint256.Int).Set(e.limits.WithdrawalFee)
			total := new(uint256.Int)

			err := runChecks(ctx, o,
				requireActive,
				requireRegistered,
				e.requireCooldownElapsed,
				requirePositive(amount),
				requireWithdrawalTarget(target),
				func(ctx context.Context, o *op) error {
					if _, overflow := total.AddOverflow(amount, fee); overflow {
						return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance")
					}
					return requireBalance(total)(ctx, o)
				},
			)
			if err != nil {
				return err
			}

			bal, err := balance.New(st.Balances).Debit(ctx, account, total)
			if err != nil {
				return err
			}
			txID, err := e.txids.Issue(ctx, st.TxIDs, account, models.TxKindWithdrawal, o.now)
			if err != nil {
				return err
			}
			if err := e.finish(ctx, o); err != nil {
				return err
			}

			result = &models.WithdrawalResult{
				TxID:    txID,
				Account: account,
				Target:  target,
				Amount:  new(uint256.Int).Set(amount),
				Fee:     fee,
				Balance: bal,
			}
			event = audit.Event{
				Action:       audit.ActionWithdrawal,
				AccountID:    account.String(),
				Counterparty: target.String(),
				TxID:         txID.String(),
				Amount:       amount.Dec(),
				Fee:          fee.Dec(),
				Timestamp:    o.now,
				RequestID:    requestcontext.RequestID(ctx),
			}
			return st.Events.Append(ctx, event)
		})
	})
	if err != nil {
		return nil, err
	}
	ports.LogAudit(ctx, e.logger, event)
	return result, nil
}

// transferFee is amount * bps / 10000, rounded down.
func (e *Engine) transferFee(amount *uint256.Int) *uint256.Int {
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(e.limits.TransferFeeBps))
	return fee.Div(fee, uint256.NewInt(bpsDenominator))
}

func swapEvent(ctx context.Context, action audit.Action, r *models.SwapResult, o *op) audit.Event {
	return audit.Event{
		Action:      action,
		AccountID:   r.Account.String(),
		TxID:        r.TxID.String(),
		Amount:      r.CryptoAmount.Dec(),
		LocalAmount: r.LocalAmount.Dec(),
		Rate:        r.Rate.Dec(),
		Timestamp:   o.now,
		RequestID:   requestcontext.RequestID(ctx),
	}
}

// tokens converts base units to whole tokens for metrics only.
func tokens(v *uint256.Int) float64 {
	return decimal.NewFromBigInt(v.ToBig(), -id.Decimals).InexactFloat64()
}
