package txid

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"tokenledger/internal/ledger/models"
	"tokenledger/internal/ledger/ports"
	"tokenledger/internal/ledger/store/memory"
	id "tokenledger/pkg/domain"
	dErrors "tokenledger/pkg/domain-errors"
)

func TestNext_MatchesKeccakOfInputs(t *testing.T) {
	seed := bytes.Repeat([]byte{0xab}, entropySize)
	g := NewGenerator(WithEntropy(bytes.NewReader(seed)))
	now := time.Unix(1_700_000_000, 0)

	got, err := g.Next("alice", now)
	require.NoError(t, err)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("alice"))
	h.Write(binary.BigEndian.AppendUint64(nil, 1_700_000_000))
	h.Write(seed)
	h.Write(binary.BigEndian.AppendUint64(nil, 1))
	var want id.TxID
	copy(want[:], h.Sum(nil))

	assert.Equal(t, want, got)
}

func TestNext_CounterSeparatesIdenticalInputs(t *testing.T) {
	seed := bytes.Repeat([]byte{0x01}, 2*entropySize)
	g := NewGenerator(WithEntropy(bytes.NewReader(seed)))
	now := time.Unix(1_700_000_000, 0)

	a, err := g.Next("alice", now)
	require.NoError(t, err)
	b, err := g.Next("alice", now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNext_EntropyFailure(t *testing.T) {
	g := NewGenerator(WithEntropy(bytes.NewReader(nil)))
	_, err := g.Next("alice", time.Now())
	assert.Error(t, err)
}

func TestIssue_RecordsProcessedID(t *testing.T) {
	l := memory.New()
	g := NewGenerator()
	now := time.Unix(1_700_000_000, 0).UTC()

	var txID id.TxID
	err := l.RunInTx(context.Background(), func(ctx context.Context, st ports.Stores) error {
		var err error
		txID, err = g.Issue(ctx, st.TxIDs, "alice", models.TxKindTransfer, now)
		return err
	})
	require.NoError(t, err)

	err = l.View(context.Background(), func(ctx context.Context, st ports.Stores) error {
		rec, err := st.TxIDs.Get(ctx, txID)
		require.NoError(t, err)
		assert.Equal(t, id.AccountID("alice"), rec.Account)
		assert.Equal(t, models.TxKindTransfer, rec.Kind)
		return nil
	})
	require.NoError(t, err)
}

func TestIssue_CollisionIsInvariantViolation(t *testing.T) {
	l := memory.New()
	seed := bytes.Repeat([]byte{0x07}, 2*entropySize)
	now := time.Unix(1_700_000_000, 0).UTC()

	// Two generators with the same seed and counter produce the same id.
	first := NewGenerator(WithEntropy(bytes.NewReader(seed[:entropySize])))
	second := NewGenerator(WithEntropy(bytes.NewReader(seed[entropySize:])))

	err := l.RunInTx(context.Background(), func(ctx context.Context, st ports.Stores) error {
		if _, err := first.Issue(ctx, st.TxIDs, "alice", models.TxKindWithdrawal, now); err != nil {
			return err
		}
		_, err := second.Issue(ctx, st.TxIDs, "alice", models.TxKindWithdrawal, now)
		return err
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
