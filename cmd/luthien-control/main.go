// Command luthien-control starts the intercepting proxy: it wires settings,
// logging, tracing, the credential/policy repository, the configured root
// policy, and the orchestrator together with fx, then listens for inbound
// chat-completions and passthrough requests over plain net/http (spec §1
// explicitly keeps the HTTP server framework out of core; this binary is the
// one place that's allowed to pick one, and it picks none at all rather than
// gin, since the core module has no dependency on it).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"

	"github.com/luthien-control/core/internal/cache"
	"github.com/luthien-control/core/internal/log"
	"github.com/luthien-control/core/internal/orchestrator"
	"github.com/luthien-control/core/internal/policy"
	_ "github.com/luthien-control/core/internal/policy/builtin"
	"github.com/luthien-control/core/internal/repository"
	"github.com/luthien-control/core/internal/settings"
	"github.com/luthien-control/core/internal/tracing"
)

func main() {
	fx.New(
		fx.WithLogger(func(l *log.Logger) fxevent.Logger { return &fxLogger{logger: l} }),
		fx.Provide(
			settings.Load,
			provideLogger,
			provideRepository,
			provideHTTPClient,
			provideContainer,
			provideRootPolicy,
			provideOrchestrator,
		),
		fx.Invoke(registerLifecycle),
	).Run()
}

type fxLogger struct{ logger *log.Logger }

func (l *fxLogger) LogEvent(event fxevent.Event) {
	l.logger.Debug(context.Background(), fmt.Sprintf("fx: %T", event))
}

func provideLogger(s *settings.Settings) *log.Logger {
	logger := log.SetGlobalConfig(log.Config{Level: s.LogLevel(), JSON: true})
	tracing.SetupLogger(logger)

	return logger
}

// provideRepository connects to Postgres eagerly; OnStop closes the pool
// (registerLifecycle). A DB URL is required — spec §6 has no in-memory
// repository fallback for production wiring (tests use their own fakes).
func provideRepository(s *settings.Settings) (repository.Repository, *repository.PostgresRepository, error) {
	repo, err := repository.Connect(context.Background(), s.DBURL(), int32(s.DBPoolSize()))
	if err != nil {
		return nil, nil, fmt.Errorf("luthien-control: connect repository: %w", err)
	}

	return repository.NewCachedRepository(repo, cacheConfigFromEnv()), repo, nil
}

func provideHTTPClient(s *settings.Settings) *http.Client {
	return &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: s.HTTPPoolSize()},
	}
}

func provideContainer(s *settings.Settings, client *http.Client, repo repository.Repository) *policy.Container {
	return &policy.Container{Settings: s, HTTPClient: client, Repository: repo}
}

// provideRootPolicy resolves the policy tree named by settings' top-level
// policy name from the repository (spec §4.6's load_policy_from_db path). An
// operator who instead wants to iterate on a policy document on disk can set
// LUTHIEN_POLICY_FILE, which takes priority (spec §4.6's load_from_file
// path) — useful in local development without a running Postgres.
func provideRootPolicy(container *policy.Container) (policy.ControlPolicy, error) {
	ctx := context.Background()

	if path := os.Getenv("LUTHIEN_POLICY_FILE"); path != "" {
		return policy.LoadFromFile(ctx, path, container)
	}

	return policy.LoadFromDB(ctx, container.Repository, container.Settings.TopLevelPolicyName(), container)
}

func provideOrchestrator(root policy.ControlPolicy, container *policy.Container) *orchestrator.Orchestrator {
	return orchestrator.New(root, container)
}

func registerLifecycle(
	lc fx.Lifecycle,
	s *settings.Settings,
	o *orchestrator.Orchestrator,
	pg *repository.PostgresRepository,
) {
	shutdownTracing, err := tracing.Setup(context.Background(), "luthien-control")
	if err != nil {
		log.Error(context.Background(), "tracing setup failed", log.Cause(err))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.AppHost(), s.AppPort()),
		Handler: newHandler(o),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error(context.Background(), "http server error", log.Cause(err))
				}
			}()

			log.Info(context.Background(), "luthien-control listening", log.String("addr", srv.Addr))

			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)

			pg.Close()

			if shutdownTracing != nil {
				err = multierr.Append(err, shutdownTracing(ctx))
			}

			return err
		},
	})
}

// newHandler adapts net/http to the orchestrator's Handle contract: decode
// the inbound request into a HostRequest, copy the HostResponse back
// (streaming SSE frames as they're produced rather than buffering them).
func newHandler(o *orchestrator.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, `{"error":{"message":"failed to read request body"}}`, http.StatusBadRequest)
			return
		}

		resp := o.Handle(r.Context(), &orchestrator.HostRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Headers:     r.Header,
			QueryParams: r.URL.Query(),
			Body:        body,
		})

		for k, vs := range resp.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}

		w.WriteHeader(resp.Status)

		if resp.Stream == nil {
			_, _ = w.Write(resp.Body)
			return
		}

		flusher, _ := w.(http.Flusher)

		defer resp.Stream.Close()

		for resp.Stream.Next() {
			if _, err := w.Write(resp.Stream.Current()); err != nil {
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}

		if err := resp.Stream.Err(); err != nil {
			log.Warn(r.Context(), "stream copy ended in error", log.Cause(err))
		}
	})
}

// cacheConfigFromEnv reads the optional repository-cache settings
// (LUTHIEN_CACHE_MODE plus LUTHIEN_CACHE_REDIS_URL/_ADDR). An unset mode
// disables caching (internal/cache.NewFromConfig's noop path).
func cacheConfigFromEnv() cache.Config {
	return cache.Config{
		Mode: os.Getenv("LUTHIEN_CACHE_MODE"),
		Redis: cache.RedisConfig{
			URL:  os.Getenv("LUTHIEN_CACHE_REDIS_URL"),
			Addr: os.Getenv("LUTHIEN_CACHE_REDIS_ADDR"),
		},
	}
}
