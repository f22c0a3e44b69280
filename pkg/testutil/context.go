package testutil

import (
	"net/http"
	"time"

	id "tokenledger/pkg/domain"
	"tokenledger/pkg/requestcontext"
)

// AsCaller marks the request as authenticated for account, the way the auth
// middleware would after validating a token.
func AsCaller(req *http.Request, account string) *http.Request {
	ctx := requestcontext.WithCaller(req.Context(), id.AccountID(account))
	return req.WithContext(ctx)
}

// AtTime pins the request clock.
func AtTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
