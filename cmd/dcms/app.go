package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/api"
	"github.com/dcms-nepal/dcms/internal/complaints"
	"github.com/dcms-nepal/dcms/internal/config"
	"github.com/dcms-nepal/dcms/internal/events"
	"github.com/dcms-nepal/dcms/internal/metrics"
	"github.com/dcms-nepal/dcms/internal/session"
	"github.com/redis/go-redis/v9"
)

const annotationStandalone = "dcms/standalone"

// app is everything one command invocation needs, built after flags parse.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	client  *api.Client
	store   session.Store
	session *session.Session
	service *complaints.Service
	metrics *metrics.Metrics
	bus     *events.InMemoryBus
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	built := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	store, err := built.openStore(ctx)
	if err != nil {
		return nil, err
	}

	built.bus = events.New(events.WithLogger(logger.StandardLog()))
	built.bus.SubscribeAll(func(event events.Event) {
		logger.Info("event", "type", event.Type, "entity", event.EntityType, "id", event.EntityID, "severity", event.Severity)
	})
	built.bus.Subscribe(events.TypeSessionExpired, func(events.Event) {
		built.metrics.CountExpiry()
	})
	built.closers = append(built.closers, func() error {
		built.bus.Close()
		return nil
	})

	sess, err := session.New(store, session.WithLogger(logger), session.WithPublisher(built.bus))
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(cfg.APIURL,
		api.WithTokenSource(sess.Token),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	sess.Bind(client)

	service, err := complaints.NewService(client, sess,
		complaints.WithLogger(logger),
		complaints.WithPublisher(built.bus),
		complaints.WithMetrics(built.metrics),
	)
	if err != nil {
		return nil, err
	}

	built.store = store
	built.client = client
	built.session = sess
	built.service = service
	return built, nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.Session.Backend {
	case config.SessionBackendRedis:
		options, err := redis.ParseURL(a.cfg.Session.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse session redis_url: %w", err)
		}
		client := redis.NewClient(options)
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		return session.NewRedisStore(client, profileKey(a.cfg.APIURL), session.WithKeyPrefix(a.cfg.Session.KeyPrefix))
	default:
		return session.NewFileStore(a.cfg.Session.Path)
	}
}

// profileKey scopes a shared redis session to the backend it was issued by.
func profileKey(apiURL string) string {
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Host == "" {
		return apiURL
	}
	return parsed.Host
}

// Close releases the bus and any store connection in reverse order.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
