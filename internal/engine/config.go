package engine

import "time"

type Config struct {
	// ScriptPath is a local axe.min.js. Tried before ScriptURL.
	ScriptPath string `mapstructure:"script_path"`
	// ScriptURL is downloaded once when ScriptPath is unset or missing.
	ScriptURL string `mapstructure:"script_url"`

	InjectTimeout time.Duration `mapstructure:"inject_timeout"`
	AuditTimeout  time.Duration `mapstructure:"audit_timeout"`
}

func DefaultConfig() Config {
	return Config{
		ScriptPath:    "node_modules/axe-core/axe.min.js",
		ScriptURL:     "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js",
		InjectTimeout: 15 * time.Second,
		AuditTimeout:  60 * time.Second,
	}
}
