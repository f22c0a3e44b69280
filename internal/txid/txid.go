// Package txid derives transaction identifiers as Keccak-256 digests.
package txid

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
	"tokenledger/pkg/platform/sentinel"
)

const entropySize = 32

// Generator is safe for concurrent use. Its counter is process-wide and the
// first id it issues uses counter value 1.
type Generator struct {
	counter atomic.Uint64
	entropy io.Reader
}

type Option func(*Generator)

// WithEntropy replaces crypto/rand as the randomness source.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		g.entropy = r
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{entropy: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next hashes caller, the unix timestamp, 32 random bytes and the counter.
func (g *Generator) Next(caller id.AccountID, now time.Time) (id.TxID, error) {
	var seed [entropySize]byte
	if _, err := io.ReadFull(g.entropy, seed[:]); err != nil {
		return id.TxID{}, fmt.Errorf("read entropy: %w", err)
	}
	n := g.counter.Add(1)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(caller))
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(now.Unix())))
	h.Write(seed[:])
	h.Write(binary.BigEndian.AppendUint64(nil, n))

	var out id.TxID
	h.Sum(out[:0])
	return out, nil
}

// Issue generates an id and records it in the processed set.
func (g *Generator) Issue(ctx context.Context, store ports.TxIDStore, caller id.AccountID, kind models.TxKind, now time.Time) (id.TxID, error) {
	txID, err := g.Next(caller, now)
	if err != nil {
		return id.TxID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate transaction id")
	}
	err = store.Record(ctx, models.ProcessedTx{
		ID:         txID,
		Account:    caller,
		Kind:       kind,
		RecordedAt: now,
	})
	if errors.Is(err, sentinel.ErrConflict) {
		return id.TxID{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "transaction id collision")
	}
	if err != nil {
		return id.TxID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transaction id")
	}
	return txID, nil
}
