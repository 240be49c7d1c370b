package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseShow(t *testing.T) {
	tests := []struct {
		in   string
		want Show
		ok   bool
	}{
		{"", ShowAvailable, true},
		{"away", ShowAway, true},
		{" dnd ", ShowDND, true},
		{"xa", ShowXA, true},
		{"chat", ShowChat, true},
		{"sleeping", ShowAvailable, false},
	}

	for _, tt := range tests {
		got, ok := ParseShow(tt.in)
		assert.Equal(t, tt.want, got, "ParseShow(%q)", tt.in)
		assert.Equal(t, tt.ok, ok, "ParseShow(%q) ok", tt.in)
	}
}

func TestShowWire(t *testing.T) {
	assert.Equal(t, "", ShowAvailable.Wire())
	assert.Equal(t, "", ShowUnavailable.Wire())
	assert.Equal(t, "dnd", ShowDND.Wire())
	assert.True(t, ShowXA.Online())
	assert.False(t, ShowUnavailable.Online())
}
