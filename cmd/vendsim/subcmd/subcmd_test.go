package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/vendsim/internal/state"
)

func TestParse(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, *state.Config) error { return nil }
	mods := []Mod{{Name: "console", Main: noop}, {Name: "status", Main: noop}}

	m, err := Parse("status", mods)
	require.NoError(t, err)
	assert.Equal(t, "status", m.Name)

	_, err = Parse("", mods)
	assert.EqualError(t, err, "empty command")
	_, err = Parse("vmc", mods)
	assert.EqualError(t, err, "unknown command='vmc'")
	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{Main: noop}}) })
}
