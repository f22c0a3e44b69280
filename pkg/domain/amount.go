package domain

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	dErrors "tokenledger/pkg/domain-errors"
)

// Decimals is the fixed-point scale of the ledger token.
const Decimals = 18

// unit is 10^18, one whole token in base units.
var unit = uint256.NewInt(1_000_000_000_000_000_000)

// Unit returns a fresh copy of 10^18.
func Unit() *uint256.Int {
	return new(uint256.Int).Set(unit)
}

// Units returns n whole tokens in base units.
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

// ParseAmount parses a base-unit integer string ("10000000000000000000").
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "amount must be a non-negative base-unit integer")
	}
	return v, nil
}

// ParseUnits parses a token-unit decimal string ("9.95") into base units.
// Values finer than one base unit are rejected rather than rounded.
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "amount must be a decimal number")
	}
	if d.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount has more than 18 decimal places")
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount is too large")
	}
	return v, nil
}

// MustUnits is ParseUnits for constants and tests.
func MustUnits(s string) *uint256.Int {
	v, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders base units as a token-unit decimal string.
func FormatUnits(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -Decimals).String()
}

// FormatAmount renders base units as an integer string; nil renders as "0".
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
