package config

import "time"

// APIConfig contains product API client configuration.
type APIConfig struct {
	// BaseURL is the root of the product REST API, e.g.
	// "https://api.careassist.example".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3001"`

	// Timeout bounds every API call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to API client configuration values.
func (a *APIConfig) Sanitize() {
	if a.Timeout <= 0 {
		a.Timeout = 10 * time.Second
	}
}
