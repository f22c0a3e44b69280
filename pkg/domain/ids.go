package domain

import (
	"encoding/hex"
	"strings"
	"unicode"

	dErrors "tokenledger/pkg/domain-errors"
)

// maxAccountIDLength bounds account identifiers accepted at trust boundaries.
const maxAccountIDLength = 66

// AccountID identifies a ledger participant. It is opaque to the ledger: an
// address, a handle, anything the hosting environment hands us.
//
// Invariant: non-empty, printable, no whitespace, and not the zero address.
// Construct via ParseAccountID at trust boundaries; direct casting bypasses validation.
type AccountID string

// ParseAccountID validates and normalizes an account identifier.
// 0x-prefixed hex addresses are lower-cased so one address maps to one account.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	if len(s) > maxAccountIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is too long")
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "account id contains invalid characters")
		}
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = "0x" + strings.ToLower(s[2:])
	}
	id := AccountID(s)
	if id.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "zero account id is not allowed")
	}
	return id, nil
}

// IsNil reports whether the id is empty.
func (a AccountID) IsNil() bool {
	return a == ""
}

// IsZero reports whether the id is empty or the all-zero address.
func (a AccountID) IsZero() bool {
	if a == "" {
		return true
	}
	s := string(a)
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	s = s[2:]
	return strings.Trim(s, "0") == ""
}

func (a AccountID) String() string {
	return string(a)
}

// TxID is the Keccak-256 digest identifying one mutating operation.
type TxID [32]byte

// ParseTxID decodes a 0x-prefixed 32-byte hex string.
func ParseTxID(s string) (TxID, error) {
	var id TxID
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != hex.EncodedLen(len(id)) {
		return id, dErrors.New(dErrors.CodeInvalidInput, "transaction id must be 32 bytes of hex")
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, dErrors.New(dErrors.CodeInvalidInput, "transaction id must be hex")
	}
	return id, nil
}

// IsNil reports whether the id is all zero bytes.
func (t TxID) IsNil() bool {
	return t == TxID{}
}

func (t TxID) String() string {
	return "0x" + hex.EncodeToString(t[:])
}
