package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/version"
)

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.run("version")
	assert.Equal(t, "xk6-locator v"+version.Full()+"\n", ts.stdOut.String())
}

func TestVersionJSONCmd(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.run("version", "--json")

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(ts.stdOut.String()), &details))
	assert.Equal(t, "v"+version.Full(), details["version"])
	assert.NotEmpty(t, details["go_version"])
}
