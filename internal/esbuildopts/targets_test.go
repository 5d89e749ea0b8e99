package esbuildopts

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargets(t *testing.T) {
	target, engines, err := Targets([]string{"es2017", "Chrome80", "safari13.1", " "})
	require.NoError(t, err)
	assert.Equal(t, api.ES2017, target)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "80"},
		{Name: api.EngineSafari, Version: "13.1"},
	}, engines)

	target, engines, err = Targets(nil)
	require.NoError(t, err)
	assert.Equal(t, api.ESNext, target)
	assert.Empty(t, engines)
}

func TestTargetsRejectsUnknown(t *testing.T) {
	_, _, err := Targets([]string{"netscape4"})
	assert.Error(t, err)
	_, _, err = Targets([]string{"80"})
	assert.Error(t, err)
}

func TestMessages(t *testing.T) {
	got := Messages([]api.Message{
		{Text: "Expected \";\"", Location: &api.Location{File: "js/main.js", Line: 3, Column: 7}},
		{Text: "plain"},
	})
	assert.Equal(t, "js/main.js:3:7: Expected \";\"\nplain", got)
}
