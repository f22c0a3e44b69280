package models

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestDayIndex(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"epoch", time.Unix(0, 0), 0},
		{"last second of day zero", time.Unix(86399, 0), 0},
		{"first second of day one", time.Unix(86400, 0), 1},
		{"before epoch floors down", time.Unix(-1, 0), -1},
		{"zone does not matter", time.Date(2025, 3, 1, 23, 0, 0, 0, time.FixedZone("X", -5*3600)), time.Date(2025, 3, 2, 4, 0, 0, 0, time.UTC).Unix() / 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayIndex(tt.at))
		})
	}
}

func TestDailyQuota_UsedOn(t *testing.T) {
	q := &DailyQuota{UsedAmount: uint256.NewInt(700), WindowStartDay: 10}

	assert.Equal(t, uint256.NewInt(700), q.UsedOn(10))
	assert.True(t, q.UsedOn(11).IsZero(), "stale window resets")

	var missing *DailyQuota
	assert.True(t, missing.UsedOn(10).IsZero())

	used := q.UsedOn(10)
	used.AddUint64(used, 1)
	assert.Equal(t, uint256.NewInt(700), q.UsedAmount, "returned value is a copy")
}

func TestAccount_RecordTransaction(t *testing.T) {
	now := time.Now()
	a := &Account{ID: "alice"}
	c := a.Clone()
	c.RecordTransaction(now)

	assert.Equal(t, uint64(1), c.TransactionCount)
	assert.Equal(t, now, c.LastActivityAt)
	assert.Zero(t, a.TransactionCount, "clone is independent")
}
