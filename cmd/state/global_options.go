package state

// GlobalOptions contains global config values that apply for all sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	Quiet          bool
	NoColor        bool
	LogOutput      string
	LogFormat      string
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		LogOutput: "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["XK6_LOCATOR_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["XK6_LOCATOR_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["XK6_LOCATOR_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["XK6_LOCATOR_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	return result
}
