// Package api implements the HTTP surface of the drinks service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"drinksmenu/internal/auth"
	"drinksmenu/internal/config"
	"drinksmenu/internal/metrics"
	"drinksmenu/internal/store"
)

// Server is the application context: every dependency a handler needs.
type Server struct {
	Store  store.Store
	Auth   *auth.Verifier
	Broker EventBroker
	Logger *logrus.Entry

	cfg            config.Config
	limiter        *clientLimiter
	trustedProxies []netip.Prefix
	upgrader       websocket.Upgrader
}

// NewServer builds the application context from cfg. An empty database url
// selects the in-memory store; a Redis url selects the Redis event broker.
func NewServer(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Server, error) {
	metrics.RegisterDefault()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ttl, err := cfg.KeySetTTL()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	verifier := auth.NewVerifier(auth.Config{
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		JWKSURL:   cfg.Auth.JWKSURL,
		KeySetTTL: ttl,
	})

	var broker EventBroker = NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := NewRedisBroker(ctx, cfg.Redis.URL, logger)
		if err != nil {
			logger.WithError(err).Warn("redis broker unavailable, using in-memory broker")
		} else {
			broker = rb
		}
	}

	s := &Server{
		Store:  st,
		Auth:   verifier,
		Broker: broker,
		Logger: logger,

		cfg:            cfg,
		trustedProxies: proxies,
	}
	if cfg.Limiter.Enabled {
		s.limiter = newClientLimiter(cfg.Limiter.RPS, cfg.Limiter.Burst)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Entry) (store.Store, error) {
	if cfg.Database.URL == "" {
		logger.Info("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), nil
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}
	idle, err := cfg.MaxIdleTime()
	if err != nil {
		return nil, err
	}
	st, err := store.OpenSQL(ctx, cfg.Database.URL, store.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxIdleTime:  idle,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.WithField("dialect", st.Dialect()).Info("database connection pool established")
	return st, nil
}

// Close releases the store, the broker and the limiter sweeper.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return errors.Join(s.Broker.Close(), s.Store.Close())
}
