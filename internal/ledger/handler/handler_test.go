package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "tokenledger/internal/jwt_token"
	"tokenledger/internal/ledger/store/memory"
	"tokenledger/internal/oracle"
	"tokenledger/internal/platform/config"
	"tokenledger/internal/registry"
	"tokenledger/internal/system"
	"tokenledger/internal/transfer"
	"tokenledger/internal/txid"
	id "tokenledger/pkg/domain"
	"tokenledger/pkg/platform/audit/publisher"
	auditmemory "tokenledger/pkg/platform/audit/store/memory"
	"tokenledger/pkg/testutil"
)

// =============================================================================
// Ledger Handler Test Suite
// =============================================================================
// Justification: the handler owns the wire contract (routes, amount strings,
// caller identity from the token, status mapping). Requests run through the
// full router against the memory backend.

const owner id.AccountID = "admin"

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	handler *Handler
	jwt     *jwttoken.JWTService
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	events := auditmemory.NewInMemoryStore()
	ledger := memory.New(memory.WithPublisher(publisher.NewPublisher(events)))
	resolver := oracle.NewResolver()
	gen := txid.NewGenerator()

	ctrl, err := system.New(ledger, gen, resolver)
	s.Require().NoError(err)
	_, err = ctrl.Bootstrap(s.T().Context(), owner, "static:2000000000000000000")
	s.Require().NoError(err)
	reg, err := registry.New(ledger)
	s.Require().NoError(err)
	engine, err := transfer.New(ledger, gen, resolver, config.DefaultLedger(owner))
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("test-key", "tokenledger")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(reg, ctrl, engine, events, logger, jwttoken.NewAdapter(s.jwt),
		WithClock(func() time.Time { return s.now }))

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
	s.handler = h

	for _, acct := range []string{"alice", "bob"} {
		rr := s.do("admin", http.MethodPost, "/v1/admin/accounts", map[string]any{"account": acct, "username": acct})
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func (s *HandlerSuite) do(caller id.AccountID, method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if caller != "" {
		token, err := s.jwt.IssueAccessToken(caller, time.Hour)
		s.Require().NoError(err)
		testutil.WithBearer(req, token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) fund(account, amount string) {
	rr := s.do(owner, http.MethodPost, "/v1/admin/credits", map[string]string{"account": account, "amount": amount})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
}

// tokens renders n whole tokens in base units.
func tokens(n string) string {
	return id.MustUnits(n).Dec()
}

func (s *HandlerSuite) TestRequiresBearerToken() {
	rr := s.do("", http.MethodGet, "/v1/system", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")

	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/v1/system", nil), "garbage")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")
}

func (s *HandlerSuite) TestTransfer() {
	s.fund("alice", tokens("1000"))

	rr := s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("10")})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[transferResponse](s.T(), rr)
	s.Equal("alice", resp.Sender)
	s.Equal("bob", resp.Recipient)
	s.Equal("10", resp.AmountDisplay)
	s.Equal("0.05", resp.FeeDisplay)
	s.Equal("9.95", resp.NetDisplay)
	s.Equal(tokens("990"), resp.SenderBalance)
	s.Len(resp.TxID, 66)

	rr = s.do("bob", http.MethodGet, "/v1/accounts/bob/balance", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	bal := testutil.UnmarshalResponse[amountResponse](s.T(), rr)
	s.Equal("9.95", bal.AmountDisplay)

	rr = s.do("alice", http.MethodGet, "/v1/accounts/alice/daily-limit", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	limit := testutil.UnmarshalResponse[amountResponse](s.T(), rr)
	s.Equal("990", limit.AmountDisplay)

	rr = s.do("bob", http.MethodGet, "/v1/transactions/"+resp.TxID, nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	tx := testutil.UnmarshalResponse[transactionResponse](s.T(), rr)
	s.Equal("alice", tx.Account)
	s.Equal("transfer", tx.Kind)
}

func (s *HandlerSuite) TestTransferCooldown() {
	s.fund("alice", tokens("100"))

	rr := s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	s.Require().Equal(http.StatusOK, rr.Code)

	s.now = s.now.Add(30 * time.Second)
	rr = s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")

	s.now = s.now.Add(30 * time.Second)
	rr = s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	s.Equal(http.StatusOK, rr.Code, rr.Body.String())
}

func (s *HandlerSuite) TestRequestValidation() {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", "not-an-object", http.StatusBadRequest, "bad_request"},
		{"unknown field", map[string]string{"recipient": "bob", "amount": "1", "memo": "x"}, http.StatusBadRequest, "bad_request"},
		{"negative amount", map[string]string{"recipient": "bob", "amount": "-1"}, http.StatusBadRequest, "invalid_input"},
		{"fractional base units", map[string]string{"recipient": "bob", "amount": "1.5"}, http.StatusBadRequest, "invalid_input"},
		{"zero address recipient", map[string]string{"recipient": "0x0000", "amount": "1"}, http.StatusBadRequest, "invalid_input"},
		{"unregistered recipient", map[string]string{"recipient": "carol", "amount": tokens("1")}, http.StatusForbidden, "not_registered"},
		{"insufficient balance", map[string]string{"recipient": "bob", "amount": tokens("1")}, http.StatusUnprocessableEntity, "insufficient_balance"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.do("alice", http.MethodPost, "/v1/transfers", tt.body)
			testutil.AssertStatusAndError(s.T(), rr, tt.status, tt.code)
		})
	}
}

func (s *HandlerSuite) TestAdminRoutesAreOwnerOnly() {
	rr := s.do("alice", http.MethodPost, "/v1/admin/pause", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")

	rr = s.do("alice", http.MethodPost, "/v1/admin/accounts", map[string]any{"account": "carol", "username": "carol"})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")

	rr = s.do("alice", http.MethodPost, "/v1/admin/credits", map[string]string{"account": "alice", "amount": tokens("1")})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")
}

func (s *HandlerSuite) TestPauseBlocksUserOperations() {
	s.fund("alice", tokens("10"))

	rr := s.do(owner, http.MethodPost, "/v1/admin/pause", nil)
	s.Require().Equal(http.StatusNoContent, rr.Code)

	rr = s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "system_paused")

	rr = s.do(owner, http.MethodGet, "/v1/system", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	status := testutil.UnmarshalResponse[systemResponse](s.T(), rr)
	s.False(status.Active)
	s.Equal("10", status.TotalSupplyDisplay)
	s.Equal(uint64(2), status.UserCount)

	rr = s.do(owner, http.MethodPost, "/v1/admin/pause", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "invalid_state")

	rr = s.do(owner, http.MethodPost, "/v1/admin/unpause", nil)
	s.Require().Equal(http.StatusNoContent, rr.Code)

	rr = s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	s.Equal(http.StatusOK, rr.Code, rr.Body.String())
}

func (s *HandlerSuite) TestSwapsAndRate() {
	rr := s.do("alice", http.MethodGet, "/v1/rate", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	rate := testutil.UnmarshalResponse[rateResponse](s.T(), rr)
	s.Equal("2", rate.RateDisplay)

	rr = s.do("alice", http.MethodPost, "/v1/swaps/local-to-crypto", map[string]string{"amount": tokens("10")})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	swap := testutil.UnmarshalResponse[swapResponse](s.T(), rr)
	s.Equal("5", swap.CryptoAmountDisplay)
	s.Equal("5", swap.BalanceDisplay)
	s.Equal("swap_local_to_crypto", swap.Kind)

	rr = s.do(owner, http.MethodPut, "/v1/admin/oracle", map[string]string{"ref": "static:4000000000000000000"})
	s.Require().Equal(http.StatusNoContent, rr.Code)

	s.now = s.now.Add(time.Minute)
	rr = s.do("alice", http.MethodPost, "/v1/swaps/crypto-to-local", map[string]string{"amount": tokens("1")})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	swap = testutil.UnmarshalResponse[swapResponse](s.T(), rr)
	s.Equal("4", swap.LocalAmountDisplay)
	s.Equal("4", swap.BalanceDisplay)

	rr = s.do(owner, http.MethodPut, "/v1/admin/oracle", map[string]string{"ref": "ftp://nowhere"})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestWithdraw() {
	s.fund("alice", tokens("10"))

	rr := s.do("alice", http.MethodPost, "/v1/withdrawals", map[string]string{"target": "0xbank", "amount": tokens("5")})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[withdrawalResponse](s.T(), rr)
	s.Equal("0.005", resp.FeeDisplay)
	s.Equal("4.995", resp.BalanceDisplay)
	s.Equal("0xbank", resp.Target)
}

func (s *HandlerSuite) TestEventsVisibility() {
	s.fund("alice", tokens("10"))
	rr := s.do("alice", http.MethodPost, "/v1/transfers", map[string]string{"recipient": "bob", "amount": tokens("1")})
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do("bob", http.MethodGet, "/v1/accounts/bob/events", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[eventsResponse](s.T(), rr)
	s.Require().NotEmpty(list.Events)
	s.Equal("transfer", list.Events[0].Action)
	s.Equal("bob", list.Events[0].Counterparty)

	rr = s.do("bob", http.MethodGet, "/v1/accounts/alice/events", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")

	rr = s.do(owner, http.MethodGet, "/v1/accounts/alice/events?limit=1", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	list = testutil.UnmarshalResponse[eventsResponse](s.T(), rr)
	s.Len(list.Events, 1)

	rr = s.do(owner, http.MethodGet, "/v1/accounts/alice/events?limit=zero", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *HandlerSuite) TestProfileAndUsernames() {
	rr := s.do("bob", http.MethodGet, "/v1/accounts/alice", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	profile := testutil.UnmarshalResponse[accountResponse](s.T(), rr)
	s.Equal("alice", profile.Username)
	s.Nil(profile.LastActivityAt)

	rr = s.do("bob", http.MethodGet, "/v1/accounts/carol", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = s.do("bob", http.MethodGet, "/v1/usernames/alice/availability", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.False(testutil.UnmarshalResponse[availabilityResponse](s.T(), rr).Available)

	rr = s.do("bob", http.MethodGet, "/v1/usernames/carol/availability", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.True(testutil.UnmarshalResponse[availabilityResponse](s.T(), rr).Available)

	rr = s.do(owner, http.MethodPost, "/v1/admin/accounts", map[string]any{"account": "carol", "username": "alice"})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "username_taken")
}

func (s *HandlerSuite) TestTransactionLookup() {
	rr := s.do("bob", http.MethodGet, "/v1/transactions/0x1234", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")

	unknown := "0x" + strings.Repeat("ab", 32)
	rr = s.do("bob", http.MethodGet, "/v1/transactions/"+unknown, nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestHandlerReadsCallerFromContext() {
	s.fund("alice", tokens("5"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/withdrawals", map[string]string{"target": "0xbank", "amount": tokens("1")})
	req = testutil.AtTime(testutil.AsCaller(req, "alice"), s.now)
	rr := httptest.NewRecorder()
	s.handler.handleWithdraw(rr, req)

	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[withdrawalResponse](s.T(), rr)
	s.Equal("alice", resp.Account)
	s.Equal("3.995", resp.BalanceDisplay)
}
