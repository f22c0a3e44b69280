package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/platform/middleware"
	"tokenledger/internal/registry"
	"tokenledger/internal/system"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/audit"
	"tokenledger/pkg/platform/httputil"
	"tokenledger/pkg/platform/middleware/auth"
	"tokenledger/pkg/platform/middleware/requesttime"
	"tokenledger/pkg/requestcontext"
)

// Registry is the account registry as seen by the HTTP layer.
type Registry interface {
	Register(ctx context.Context, admin id.AccountID, req registry.RegisterRequest) (*models.Account, error)
	Profile(ctx context.Context, account id.AccountID) (*models.Account, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
}

// Admin covers the owner-only controls and the system status.
type Admin interface {
	Pause(ctx context.Context, admin id.AccountID) error
	Unpause(ctx context.Context, admin id.AccountID) error
	SetOracle(ctx context.Context, admin id.AccountID, ref string) error
	CreditForOps(ctx context.Context, admin, account id.AccountID, amount *uint256.Int) (*models.CreditResult, error)
	Status(ctx context.Context) (*system.Status, error)
}

// Ledger covers the user operations and the read-only queries.
type Ledger interface {
	Transfer(ctx context.Context, sender, recipient id.AccountID, amount *uint256.Int) (*models.TransferResult, error)
	SwapLocalToCrypto(ctx context.Context, account id.AccountID, localAmount *uint256.Int) (*models.SwapResult, error)
	SwapCryptoToLocal(ctx context.Context, account id.AccountID, cryptoAmount *uint256.Int) (*models.SwapResult, error)
	Withdraw(ctx context.Context, account, target id.AccountID, amount *uint256.Int) (*models.WithdrawalResult, error)
	ExchangeRate(ctx context.Context) (*uint256.Int, error)
	RemainingDailyLimit(ctx context.Context, account id.AccountID) (*uint256.Int, error)
	Balance(ctx context.Context, account id.AccountID) (*uint256.Int, error)
	Transaction(ctx context.Context, txID id.TxID) (*models.ProcessedTx, error)
}

// EventLister lists audit events involving an account, newest first.
type EventLister interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]audit.Event, error)
}

// Handler serves the ledger's /v1 API.
type Handler struct {
	logger       *slog.Logger
	registry     Registry
	admin        Admin
	ledger       Ledger
	events       EventLister
	jwtValidator auth.JWTValidator
	clock        func() time.Time
}

type Option func(*Handler)

// WithClock pins the request time source; tests use a fixed clock.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		h.clock = clock
	}
}

// New creates a ledger Handler.
func New(
	reg Registry,
	admin Admin,
	ledger Ledger,
	events EventLister,
	logger *slog.Logger,
	jwtValidator auth.JWTValidator,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:       logger,
		registry:     reg,
		admin:        admin,
		ledger:       ledger,
		events:       events,
		jwtValidator: jwtValidator,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts the ledger routes on r. Every route requires a bearer token
// whose subject is the calling account.
func (h *Handler) Register(r chi.Router) {
	ledgerRouter := chi.NewRouter()
	ledgerRouter.Use(middleware.Recovery(h.logger))
	ledgerRouter.Use(middleware.RequestID)
	ledgerRouter.Use(middleware.ClientIP)
	ledgerRouter.Use(middleware.Logger(h.logger))
	ledgerRouter.Use(requesttime.WithClock(h.clock))
	ledgerRouter.Use(auth.RequireAuth(h.jwtValidator, h.logger))

	ledgerRouter.Route("/admin", func(r chi.Router) {
		r.Post("/accounts", h.handleRegister)
		r.Post("/pause", h.handlePause)
		r.Post("/unpause", h.handleUnpause)
		r.Put("/oracle", h.handleSetOracle)
		r.Post("/credits", h.handleCredit)
	})

	ledgerRouter.Post("/transfers", h.handleTransfer)
	ledgerRouter.Post("/swaps/local-to-crypto", h.handleSwapLocalToCrypto)
	ledgerRouter.Post("/swaps/crypto-to-local", h.handleSwapCryptoToLocal)
	ledgerRouter.Post("/withdrawals", h.handleWithdraw)

	ledgerRouter.Get("/accounts/{id}", h.handleProfile)
	ledgerRouter.Get("/accounts/{id}/balance", h.handleBalance)
	ledgerRouter.Get("/accounts/{id}/daily-limit", h.handleDailyLimit)
	ledgerRouter.Get("/accounts/{id}/events", h.handleEvents)
	ledgerRouter.Get("/rate", h.handleRate)
	ledgerRouter.Get("/usernames/{username}/availability", h.handleUsernameAvailability)
	ledgerRouter.Get("/system", h.handleSystem)
	ledgerRouter.Get("/transactions/{id}", h.handleTransaction)

	r.Mount("/v1", ledgerRouter)
}

// fail logs a rejected request and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"operation", operation,
		"code", string(code),
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx).String(),
	}
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed", append(attrs, "error", err)...)
	} else {
		h.logger.WarnContext(ctx, "request rejected", append(attrs, "error", err.Error())...)
	}
	httputil.WriteError(w, err)
}

func pathAccount(r *http.Request) (id.AccountID, error) {
	return id.ParseAccountID(chi.URLParam(r, "id"))
}
