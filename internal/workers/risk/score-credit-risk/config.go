// internal/workers/risk/score-credit-risk/config.go
package scorecreditrisk

import "time"

type Config struct {
	Timeout time.Duration
	// CacheTTL of zero disables the result cache.
	CacheTTL           time.Duration
	DecisionLogEnabled bool
	// InputSchema is the activity's JSON Schema from the registry. Empty accepts any input.
	InputSchema map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}
