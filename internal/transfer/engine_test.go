package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"tokenledger/internal/ledger/store/memory"
	"tokenledger/internal/oracle"
	"tokenledger/internal/platform/config"
	"tokenledger/internal/registry"
	"tokenledger/internal/system"
	"tokenledger/internal/txid"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/audit/publisher"
	auditmemory "tokenledger/pkg/platform/audit/store/memory"
	"tokenledger/pkg/requestcontext"
)

// =============================================================================
// Transfer Engine Test Suite
// =============================================================================
// Justification: the engine is where balance, quota, cooldown and pause rules
// meet. Each scenario drives the real memory backend so rollbacks are
// observed, not assumed.

const owner id.AccountID = "admin"

type EngineSuite struct {
	suite.Suite
	ledger   *memory.Ledger
	audit    *publisher.Publisher
	resolver *oracle.Resolver
	system   *system.Controller
	registry *registry.Service
	engine   *Engine
	t0       time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.audit = publisher.NewPublisher(auditmemory.NewInMemoryStore())
	s.ledger = memory.New(memory.WithPublisher(s.audit))
	s.resolver = oracle.NewResolver()
	gen := txid.NewGenerator()
	// 2025-06-02T00:00:00Z
	s.t0 = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	var err error
	s.system, err = system.New(s.ledger, gen, s.resolver)
	s.Require().NoError(err)
	_, err = s.system.Bootstrap(s.at(s.t0), owner, "static:2000000000000000000")
	s.Require().NoError(err)

	s.registry, err = registry.New(s.ledger)
	s.Require().NoError(err)
	for _, acct := range []id.AccountID{"alice", "bob"} {
		_, err := s.registry.Register(s.at(s.t0), owner, registry.RegisterRequest{Account: acct, Username: string(acct)})
		s.Require().NoError(err)
	}

	s.engine, err = New(s.ledger, gen, s.resolver, config.DefaultLedger(owner))
	s.Require().NoError(err)
}

func (s *EngineSuite) TearDownTest() {
	s.audit.Close()
}

func (s *EngineSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EngineSuite) fund(account id.AccountID, amount string) {
	_, err := s.system.CreditForOps(s.at(s.t0), owner, account, id.MustUnits(amount))
	s.Require().NoError(err)
}

func (s *EngineSuite) balance(account id.AccountID) *uint256.Int {
	bal, err := s.engine.Balance(context.Background(), account)
	s.Require().NoError(err)
	return bal
}

func (s *EngineSuite) supply() *uint256.Int {
	status, err := s.system.Status(context.Background())
	s.Require().NoError(err)
	return status.TotalSupply
}

func (s *EngineSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "error: %v", err)
}

// -----------------------------------------------------------------------------
// Transfers
// -----------------------------------------------------------------------------

func (s *EngineSuite) TestTransferBurnsFee() {
	s.fund("alice", "1000")

	res, err := s.engine.Transfer(s.at(s.t0), "alice", "bob", id.Units(10))
	s.Require().NoError(err)
	s.True(res.SenderBalance.Eq(id.Units(990)))
	s.True(res.RecipientBalance.Eq(id.MustUnits("9.95")))
	s.True(res.Fee.Eq(id.MustUnits("0.05")))
	s.True(res.Net.Eq(id.MustUnits("9.95")))
	s.False(res.TxID.IsNil())

	s.True(s.balance("alice").Eq(id.Units(990)))
	s.True(s.balance("bob").Eq(id.MustUnits("9.95")))
	s.True(s.supply().Eq(id.MustUnits("999.95")))

	for _, acct := range []id.AccountID{"alice", "bob"} {
		profile, err := s.registry.Profile(context.Background(), acct)
		s.Require().NoError(err)
		s.Equal(uint64(1), profile.TransactionCount)
		s.Equal(s.t0, profile.LastActivityAt)
	}

	events, err := s.audit.List(context.Background(), "bob", 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal(audit.ActionTransfer, events[0].Action)
	s.Equal("alice", events[0].AccountID)
	s.Equal(res.TxID.String(), events[0].TxID)
	s.Equal(id.MustUnits("0.05").Dec(), events[0].Fee)

	tx, err := s.engine.Transaction(context.Background(), res.TxID)
	s.Require().NoError(err)
	s.Equal(id.AccountID("alice"), tx.Account)
}

func (s *EngineSuite) TestTransferCooldown() {
	s.fund("alice", "100")
	s.fund("bob", "100")

	_, err := s.engine.Transfer(s.at(s.t0), "alice", "bob", id.Units(1))
	s.Require().NoError(err)

	_, err = s.engine.Transfer(s.at(s.t0.Add(59*time.Second)), "alice", "bob", id.Units(1))
	s.requireCode(err, dErrors.CodeRateLimited)

	// The recipient is not cooled down.
	_, err = s.engine.Transfer(s.at(s.t0.Add(time.Second)), "bob", "alice", id.Units(1))
	s.Require().NoError(err)

	_, err = s.engine.Transfer(s.at(s.t0.Add(60*time.Second)), "alice", "bob", id.Units(1))
	s.Require().NoError(err)
}

func (s *EngineSuite) TestRejectedOperationDoesNotStartCooldown() {
	s.fund("alice", "100")

	_, err := s.engine.Transfer(s.at(s.t0), "alice", "bob", id.MustUnits("0.001"))
	s.requireCode(err, dErrors.CodeValidation)

	_, err = s.engine.Transfer(s.at(s.t0.Add(time.Second)), "alice", "bob", id.Units(1))
	s.Require().NoError(err)
}

func (s *EngineSuite) TestDailyCapAndRollover() {
	s.fund("alice", "1100")

	_, err := s.engine.Transfer(s.at(s.t0), "alice", "bob", id.Units(500))
	s.Require().NoError(err)
	_, err = s.engine.Transfer(s.at(s.t0.Add(time.Minute)), "alice", "bob", id.Units(500))
	s.Require().NoError(err)

	remaining, err := s.engine.RemainingDailyLimit(s.at(s.t0.Add(2*time.Minute)), "alice")
	s.Require().NoError(err)
	s.True(remaining.IsZero())

	_, err = s.engine.Transfer(s.at(s.t0.Add(2*time.Minute)), "alice", "bob", id.MustUnits("0.01"))
	s.requireCode(err, dErrors.CodeQuotaExceeded)
	s.True(s.balance("alice").Eq(id.Units(100)))

	nextDay := s.t0.Add(24 * time.Hour)
	remaining, err = s.engine.RemainingDailyLimit(s.at(nextDay), "alice")
	s.Require().NoError(err)
	s.True(remaining.Eq(id.Units(1000)))

	_, err = s.engine.Transfer(s.at(nextDay), "alice", "bob", id.Units(50))
	s.Require().NoError(err)
}

func (s *EngineSuite) TestTransferValidation() {
	s.fund("alice", "1000")
	tests := []struct {
		name      string
		sender    id.AccountID
		recipient id.AccountID
		amount    *uint256.Int
		code      dErrors.Code
	}{
		{"unregistered sender", "carol", "bob", id.Units(1), dErrors.CodeNotRegistered},
		{"unregistered recipient", "alice", "carol", id.Units(1), dErrors.CodeNotRegistered},
		{"self transfer", "alice", "alice", id.Units(1), dErrors.CodeValidation},
		{"below minimum", "alice", "bob", id.MustUnits("0.009"), dErrors.CodeValidation},
		{"above maximum", "alice", "bob", id.MustUnits("500.000000000000000001"), dErrors.CodeValidation},
		{"nil amount", "alice", "bob", nil, dErrors.CodeValidation},
		{"insufficient balance", "bob", "alice", id.Units(1), dErrors.CodeInsufficientBalance},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.engine.Transfer(s.at(s.t0), tt.sender, tt.recipient, tt.amount)
			s.requireCode(err, tt.code)
		})
	}
	s.True(s.balance("alice").Eq(id.Units(1000)))
	s.True(s.supply().Eq(id.Units(1000)))
}

func (s *EngineSuite) TestPausedSystemRejectsUserOperations() {
	s.fund("alice", "100")
	s.Require().NoError(s.system.Pause(s.at(s.t0), owner))
	ctx := s.at(s.t0)

	_, err := s.engine.Transfer(ctx, "alice", "bob", id.Units(1))
	s.requireCode(err, dErrors.CodeSystemPaused)
	_, err = s.engine.SwapLocalToCrypto(ctx, "alice", id.Units(1))
	s.requireCode(err, dErrors.CodeSystemPaused)
	_, err = s.engine.SwapCryptoToLocal(ctx, "alice", id.Units(1))
	s.requireCode(err, dErrors.CodeSystemPaused)
	_, err = s.engine.Withdraw(ctx, "alice", "0xbeef", id.Units(1))
	s.requireCode(err, dErrors.CodeSystemPaused)

	s.True(s.balance("alice").Eq(id.Units(100)))

	// Admin credit still works while paused.
	s.fund("alice", "1")
	s.True(s.balance("alice").Eq(id.Units(101)))

	s.Require().NoError(s.system.Unpause(s.at(s.t0), owner))
	_, err = s.engine.Transfer(ctx, "alice", "bob", id.Units(1))
	s.Require().NoError(err)
}

// -----------------------------------------------------------------------------
// Withdrawals
// -----------------------------------------------------------------------------

func (s *EngineSuite) TestWithdrawIncludesFlatFee() {
	s.fund("alice", "5.004")
	_, err := s.engine.Withdraw(s.at(s.t0), "alice", "0xbeef", id.Units(5))
	s.requireCode(err, dErrors.CodeInsufficientBalance)

	s.fund("alice", "0.001")
	res, err := s.engine.Withdraw(s.at(s.t0), "alice", "0xbeef", id.Units(5))
	s.Require().NoError(err)
	s.True(res.Balance.IsZero())
	s.True(res.Fee.Eq(id.MustUnits("0.005")))
	s.True(s.supply().IsZero())

	profile, err := s.registry.Profile(context.Background(), "alice")
	s.Require().NoError(err)
	s.Zero(profile.TransactionCount)

	_, err = s.engine.Withdraw(s.at(s.t0.Add(time.Second)), "alice", "0xbeef", id.Units(1))
	s.requireCode(err, dErrors.CodeRateLimited)
}

func (s *EngineSuite) TestWithdrawValidation() {
	s.fund("alice", "10")
	ctx := s.at(s.t0)

	_, err := s.engine.Withdraw(ctx, "alice", "0xbeef", new(uint256.Int))
	s.requireCode(err, dErrors.CodeValidation)
	_, err = s.engine.Withdraw(ctx, "alice", "0x0000000000000000000000000000000000000000", id.Units(1))
	s.requireCode(err, dErrors.CodeInvalidInput)
	_, err = s.engine.Withdraw(ctx, "alice", "alice", id.Units(1))
	s.requireCode(err, dErrors.CodeValidation)
	_, err = s.engine.Withdraw(ctx, "alice", "0xbeef", new(uint256.Int).SetAllOne())
	s.requireCode(err, dErrors.CodeInsufficientBalance)
}

// -----------------------------------------------------------------------------
// Swaps
// -----------------------------------------------------------------------------

func (s *EngineSuite) TestSwapsUseOracleRate() {
	res, err := s.engine.SwapLocalToCrypto(s.at(s.t0), "alice", id.Units(10))
	s.Require().NoError(err)
	s.True(res.CryptoAmount.Eq(id.Units(5)))
	s.True(res.Balance.Eq(id.Units(5)))
	s.True(res.Rate.Eq(id.Units(2)))

	res, err = s.engine.SwapCryptoToLocal(s.at(s.t0.Add(time.Minute)), "alice", id.Units(1))
	s.Require().NoError(err)
	s.True(res.LocalAmount.Eq(id.Units(2)))
	s.True(res.Balance.Eq(id.Units(4)))

	profile, err := s.registry.Profile(context.Background(), "alice")
	s.Require().NoError(err)
	s.Equal(uint64(2), profile.TransactionCount)

	rate, err := s.engine.ExchangeRate(context.Background())
	s.Require().NoError(err)
	s.True(rate.Eq(id.Units(2)))
}

func (s *EngineSuite) TestSwapRejections() {
	ctx := s.at(s.t0)

	_, err := s.engine.SwapLocalToCrypto(ctx, "alice", uint256.NewInt(1))
	s.requireCode(err, dErrors.CodeValidation)
	_, err = s.engine.SwapCryptoToLocal(ctx, "alice", id.Units(1))
	s.requireCode(err, dErrors.CodeInsufficientBalance)

	s.Require().NoError(s.system.SetOracle(ctx, owner, "static:0"))
	_, err = s.engine.SwapLocalToCrypto(ctx, "alice", id.Units(10))
	s.requireCode(err, dErrors.CodeInvalidRate)
	_, err = s.engine.ExchangeRate(ctx)
	s.requireCode(err, dErrors.CodeInvalidRate)
}

// -----------------------------------------------------------------------------
// Conservation
// -----------------------------------------------------------------------------

func (s *EngineSuite) TestTransfersConserveValue() {
	s.fund("alice", "500")
	s.fund("bob", "500")

	burned := new(uint256.Int)
	now := s.t0
	amounts := []string{"1", "0.01", "123.456", "499.99", "7"}
	for i, amount := range amounts {
		from, to := id.AccountID("alice"), id.AccountID("bob")
		if i%2 == 1 {
			from, to = to, from
		}
		res, err := s.engine.Transfer(s.at(now), from, to, id.MustUnits(amount))
		s.Require().NoError(err, "transfer %d", i)
		burned.Add(burned, res.Fee)
		now = now.Add(time.Minute)
	}

	sum := new(uint256.Int).Add(s.balance("alice"), s.balance("bob"))
	s.True(sum.Eq(s.supply()))
	s.True(new(uint256.Int).Add(sum, burned).Eq(id.Units(1000)))
}

func TestReentryGuard(t *testing.T) {
	g := newReentryGuard()
	var inner error
	err := g.run("alice", func() error {
		inner = g.run("alice", func() error { return nil })
		return g.run("bob", func() error { return nil })
	})
	if err != nil {
		t.Fatalf("outer run: %v", err)
	}
	if !dErrors.HasCode(inner, dErrors.CodeConflict) {
		t.Fatalf("nested run for the same account: got %v, want conflict", inner)
	}
	if err := g.run("alice", func() error { return nil }); err != nil {
		t.Fatalf("guard not released: %v", err)
	}
}

func TestNew_RejectsInvalidLimits(t *testing.T) {
	limits := config.DefaultLedger(owner)
	limits.TransferFeeBps = 10_000
	if _, err := New(memory.New(), txid.NewGenerator(), oracle.NewResolver(), limits); err == nil {
		t.Fatal("expected invalid limits to be rejected")
	}
}
