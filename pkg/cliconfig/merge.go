package cliconfig

// MergeConfig merges source config into target, updating sources tracking.
// Only non-zero values from source are applied.
func MergeConfig(target, source *CLIConfig, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}

	if source.URL != "" {
		target.URL = source.URL
		target.Sources["url"] = sourceType
	}
	if source.TokenDir != "" {
		target.TokenDir = source.TokenDir
		target.Sources["tokenDir"] = sourceType
	}
	if source.Timeout != 0 {
		target.Timeout = source.Timeout
		target.Sources["timeout"] = sourceType
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		target.Sources["logLevel"] = sourceType
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		target.Sources["logFormat"] = sourceType
	}
	if source.MetricsTextfile != "" {
		target.MetricsTextfile = source.MetricsTextfile
		target.Sources["metricsTextfile"] = sourceType
	}
	// `if source.JSON` cannot see an explicit false; SetFields can.
	if boolIsSet(source, "json") {
		target.JSON = source.JSON
		target.Sources["json"] = sourceType
	}
}

// boolIsSet reports whether a boolean field identified by its YAML key was
// explicitly set in the source config. Without SetFields (a config built in
// code) only true counts as set.
func boolIsSet(cfg *CLIConfig, yamlKey string) bool {
	if cfg.SetFields != nil {
		return cfg.SetFields[yamlKey]
	}
	switch yamlKey {
	case "json":
		return cfg.JSON
	}
	return false
}
