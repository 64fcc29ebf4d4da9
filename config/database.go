package config

// DBConfig contains PostgreSQL configuration for the audit trail.
type DBConfig struct {
	// Enabled controls whether the audit trail is written at all. The
	// gateway runs fine without it; auditing is best-effort by contract.
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"webgate"`
	Password string `env:"PASSWORD" envDefault:"webgate"`
	Name     string `env:"NAME"     envDefault:"webgate"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
}

// RedisConfig contains Redis configuration for the durable token store and
// the guard flag store.
type RedisConfig struct {
	// Enabled selects Redis over the in-process fallback stores. The
	// fallback loses sessions on restart, which is acceptable for dev only.
	Enabled bool `env:"ENABLED" envDefault:"false"`

	// URI accepts either a host:port pair or a redis:// / rediss:// URL.
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}
