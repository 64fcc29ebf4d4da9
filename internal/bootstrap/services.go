package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careassist/webgate/config"
	"github.com/careassist/webgate/internal/adapters/memstore"
	"github.com/careassist/webgate/internal/adapters/postgres"
	"github.com/careassist/webgate/internal/adapters/restapi"
	httpx "github.com/careassist/webgate/internal/http"
	"github.com/careassist/webgate/internal/ports"
	"github.com/careassist/webgate/internal/service"
)

// Container wires the gateway's services and holds the infrastructure handles
// they run on.
type Container struct {
	Controller *service.Controller
	Flags      ports.GuardFlagStore
	Claims     *httpx.ClaimsParser
	Audit      ports.AuditRecorder

	cfg    *config.AppConfig
	logger *slog.Logger
	redis  *redis.Client
	pool   *pgxpool.Pool
}

// NewContainer builds all services from configuration. Redis and PostgreSQL
// are attached only when enabled; otherwise in-process fallbacks keep the
// gateway functional for development.
func NewContainer(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{cfg: cfg, logger: logger}

	var (
		tokenStore ports.TokenStore
		flagStore  ports.GuardFlagStore
	)
	if cfg.Redis.Enabled {
		client, err := ConnectRedis(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		c.redis = client
		tokenStore, flagStore = NewRedisStores(client, cfg.Auth.CookieMaxAge)
	} else {
		logger.Warn("redis disabled, sessions will not survive restarts")
		tokenStore = memstore.NewTokenStore(cfg.Auth.CookieMaxAge)
		flagStore = memstore.NewFlagStore()
	}
	c.Flags = flagStore

	if cfg.Postgres.Enabled {
		pool, err := ConnectAuditPool(ctx, cfg.Postgres, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.pool = pool
		repo := postgres.NewAuditRepo(pool, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			c.Close()
			return nil, err
		}
		c.Audit = repo
	}

	api, err := restapi.NewClient(restapi.ClientOptions{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build api client: %w", err)
	}

	tokens := service.NewSessionTokens(service.SessionTokensOptions{
		Store: tokenStore,
		Cookie: service.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Domain: cfg.Auth.CookieDomain,
			MaxAge: cfg.Auth.CookieMaxAge,
		},
		Logger: logger,
	})

	c.Controller = service.NewController(service.ControllerOptions{
		API:              api,
		Tokens:           tokens,
		Audit:            c.Audit,
		Logger:           logger,
		CheckTTL:         cfg.Auth.CheckTTL,
		ResolveTimeout:   cfg.Auth.ResolveTimeout,
		PropagationDelay: cfg.Auth.PropagationDelay,
	})

	var signingKey []byte
	if cfg.Auth.EdgeSigningKey != "" {
		signingKey = []byte(cfg.Auth.EdgeSigningKey)
	}
	c.Claims = httpx.NewClaimsParser(signingKey)

	return c, nil
}

// Handler builds the HTTP handler over the container's services.
func (c *Container) Handler() http.Handler {
	return httpx.NewRouter(httpx.RouterServices{
		Controller: c.Controller,
		Flags:      c.Flags,
		Claims:     c.Claims,
		Audit:      c.Audit,
		FlagTTL:    c.cfg.Auth.GuardFlagTTL,
		Logger:     c.logger,
	})
}

// Close releases infrastructure handles. Safe to call on a partially built
// container.
func (c *Container) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("close redis failed", "error", err)
		}
		c.redis = nil
	}
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}
