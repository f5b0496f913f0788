package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnvMap(t *testing.T) {
	t.Parallel()

	env := BuildEnvMap([]string{"A=1", "B=x=y", "EMPTY=", "BARE"})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "EMPTY": "", "BARE": ""}, env)
}

func TestConsolidateGlobalFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		env  map[string]string
		want GlobalOptions
	}{
		{"empty", nil, GlobalOptions{LogOutput: "stderr"}},
		{"config", map[string]string{"XK6_LOCATOR_CONFIG": "a.yaml"}, GlobalOptions{ConfigFilePath: "a.yaml", LogOutput: "stderr"}},
		{"log_output", map[string]string{"XK6_LOCATOR_LOG_OUTPUT": "none"}, GlobalOptions{LogOutput: "none"}},
		{"log_format", map[string]string{"XK6_LOCATOR_LOG_FORMAT": "json"}, GlobalOptions{LogFormat: "json", LogOutput: "stderr"}},
		{"no_color", map[string]string{"NO_COLOR": ""}, GlobalOptions{NoColor: true, LogOutput: "stderr"}},
		{"no_color_own", map[string]string{"XK6_LOCATOR_NO_COLOR": "1"}, GlobalOptions{NoColor: true, LogOutput: "stderr"}},
		{"no_color_own_empty", map[string]string{"XK6_LOCATOR_NO_COLOR": ""}, GlobalOptions{LogOutput: "stderr"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, consolidateGlobalFlags(GetDefaultGlobalOptions(), tc.env))
		})
	}
}
