package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  ", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"trims and drops empties", " b1:9092 ,, b2:9092 ,", []string{"b1:9092", "b2:9092"}},
		{"dedupes keeping first", "b2,b1,b2", []string{"b2", "b1"}},
		{"case is significant", "B1,b1", []string{"B1", "b1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw, ","))
		})
	}
}
