package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type light string

var table = Table[light]{
	"red":    {"green"},
	"green":  {"yellow"},
	"yellow": {"red", "off"},
	"off":    {},
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		from, to light
		wantErr  bool
		unknown  bool
	}{
		{name: "allowed", from: "red", to: "green"},
		{name: "self", from: "green", to: "green"},
		{name: "skip", from: "red", to: "yellow", wantErr: true},
		{name: "out of terminal", from: "off", to: "red", wantErr: true},
		{name: "unknown target", from: "red", to: "blue", wantErr: true, unknown: true},
		{name: "unknown source", from: "blue", to: "red", wantErr: true, unknown: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := table.Check(tt.from, tt.to)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var te *TransitionError[light]
			var ue *UnknownStateError[light]
			if tt.unknown {
				assert.True(t, errors.As(err, &ue))
			} else {
				assert.True(t, errors.As(err, &te))
				assert.Equal(t, tt.from, te.From)
			}
		})
	}
}

func TestTerminalAndStates(t *testing.T) {
	assert.True(t, table.Terminal("off"))
	assert.False(t, table.Terminal("red"))
	assert.False(t, table.Terminal("blue"))
	assert.Equal(t, []light{"green", "off", "red", "yellow"}, table.States())
	assert.Equal(t, []light{"red", "off"}, table.Next("yellow"))
}
