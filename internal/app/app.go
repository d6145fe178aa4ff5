// Package app wires configuration, storage and services into a runnable
// backend. Both cmd/server and cmd/threadctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/comments"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/config"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/database"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/handlers"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/metrics"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/middleware"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/posts"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/score"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/server"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/session"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/store"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/token"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/users"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *gorm.DB
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter

	Sessions *session.Service
	Votes    *score.Service
	Users    *users.Directory
	Posts    *posts.Service
	Comments *comments.Service
}

// New validates cfg, opens the database and builds every service. A bad
// configuration is returned before any connection is attempted.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	return newWithDB(cfg, log, db), nil
}

func newWithDB(cfg *config.Config, log *slog.Logger, db *gorm.DB) *App {
	m := metrics.New()
	pg := store.NewPostgres(db)
	dir := users.NewDirectory(db)

	var limiter *middleware.RateLimiter
	if cfg.AuthRatePerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthRatePerSecond, max(cfg.AuthRateBurst, 1))
	}

	return &App{
		cfg:      cfg,
		log:      log,
		db:       db,
		metrics:  m,
		limiter:  limiter,
		Sessions: session.NewService(token.NewCodec(cfg.Tokens), pg, dir, log, session.WithMetrics(m)),
		Votes:    score.NewService(pg, pg, log, m),
		Users:    dir,
		Posts:    posts.NewService(db),
		Comments: comments.NewService(db, log),
	}
}

// Migrate brings the schema up to date.
func (a *App) Migrate() error {
	return database.Migrate(a.db)
}

// Sweep removes refresh sessions that expired more than the configured
// retention ago.
func (a *App) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("retention must not be negative, got %s", olderThan)
	}
	return a.Sessions.PruneExpired(ctx, time.Now().UTC().Add(-olderThan))
}

// Handler returns the routed HTTP handler without starting a listener.
func (a *App) Handler() http.Handler {
	return a.server().RegisterRoutes()
}

func (a *App) server() *server.Server {
	h := handlers.NewHandler(handlers.Deps{
		Sessions: a.Sessions,
		Users:    a.Users,
		Posts:    a.Posts,
		Comments: a.Comments,
		Votes:    a.Votes,
		Log:      a.log,
	})
	return server.New(server.Options{
		Handler:     h,
		Auth:        a.Sessions,
		Health:      func(ctx context.Context) map[string]string { return database.Health(ctx, a.db) },
		Metrics:     a.metrics.Handler(),
		CORSOrigins: a.cfg.CORSOrigins,
		AuthLimit:   a.limiter,
		Log:         a.log,
	})
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := a.server().HTTPServer(a.cfg.Port)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server shutdown failed", "error", err)
			return fmt.Errorf("shutdown: %w", err)
		}
		a.log.Info("server stopped")
		return nil
	})

	if a.cfg.SweepInterval > 0 {
		g.Go(func() error {
			a.sweepLoop(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sweep(ctx, a.cfg.SessionRetention); err != nil && ctx.Err() == nil {
				a.log.Warn("session sweep failed", "error", err)
			}
			a.pruneLimiter(time.Now())
		}
	}
}

func (a *App) pruneLimiter(now time.Time) {
	if a.limiter == nil {
		return
	}
	if n := a.limiter.Prune(now); n > 0 {
		a.log.Debug("rate limiter pruned", "removed", n, "remaining", a.limiter.Len())
	}
}

func (a *App) Close() error {
	return database.Close(a.db)
}
