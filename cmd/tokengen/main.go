// Command tokengen mints a development access token for an account.
//
//	tokengen -account alice -ttl 2h
//
// The signing key and issuer come from the same environment variables the
// server reads, so the token validates against a locally running ledger.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "tokenledger/internal/jwt_token"
	"tokenledger/internal/platform/config"
	id "tokenledger/pkg/domain"
)

func main() {
	account := flag.String("account", "", "account id to put in the token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*account, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(rawAccount string, ttl time.Duration) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if rawAccount == "" {
		rawAccount = cfg.Ledger.Owner.String()
	}
	account, err := id.ParseAccountID(rawAccount)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	token, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer).IssueAccessToken(account, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
