package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"ntsc rational", "30000/1001", 29.97002997002997},
		{"integer rational", "25/1", 25},
		{"plain decimal", "23.976", 23.976},
		{"zero denominator", "30/0", 0},
		{"garbage", "abc/def", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseFrameRate(tt.input), 1e-9)
		})
	}
}
