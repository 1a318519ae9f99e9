// Package server is the composition root of the mural: it opens the store,
// starts the feed hub, builds services and handlers, and mounts the routes.
//
// DEPENDENCY FLOW:
//
//	sqlite.DB → feedsource.Hub → service.ActionService → handler / live
//	          → service.MemberService → handler.MemberHandler
//	          → inspiration.Daily (settings cache)
//
// The server keeps one feed.Reconciler of its own, subscribed to the hub, to
// answer the JSON reads and render the page. Every /live session subscribes
// separately.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/category"
	"github.com/vibeteen/vibe-teen/internal/config"
	"github.com/vibeteen/vibe-teen/internal/feed"
	"github.com/vibeteen/vibe-teen/internal/feedsource"
	"github.com/vibeteen/vibe-teen/internal/handler"
	"github.com/vibeteen/vibe-teen/internal/inspiration"
	"github.com/vibeteen/vibe-teen/internal/live"
	"github.com/vibeteen/vibe-teen/internal/middleware"
	"github.com/vibeteen/vibe-teen/internal/mural"
	sqliteRepo "github.com/vibeteen/vibe-teen/internal/repository/sqlite"
	"github.com/vibeteen/vibe-teen/internal/service"
)

// shutdownTimeout is how long in-flight requests get after a stop signal.
const shutdownTimeout = 30 * time.Second

// Options are the knobs tests need. Production passes the zero value.
type Options struct {
	// Location decides what "today" means for stats and the daily mission.
	// nil means time.Local.
	Location *time.Location

	// Mission replaces the configured inspiration chain.
	Mission inspiration.Provider

	// Google replaces the OAuth provider built from config.
	Google handler.GoogleExchanger
}

// Server owns the database, the hub and the router.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux

	db          *sqliteRepo.DB
	hub         *feedsource.Hub
	rec         *feed.Reconciler
	unsubscribe func()
	live        *live.Handler

	closeOnce sync.Once
	closeErr  error
}

// New wires everything. The caller must eventually call Run or Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("server: creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	hub := feedsource.NewHub(db.Actions(), cfg.Feed.Limit, logger)
	rec := feed.NewReconciler(cfg.Feed.CellSize, feed.WithLocation(loc))
	unsubscribe := hub.Subscribe(rec.OnSnapshot, rec.OnError)

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		router:      chi.NewRouter(),
		db:          db,
		hub:         hub,
		rec:         rec,
		unsubscribe: unsubscribe,
	}

	mission := opts.Mission
	if mission == nil {
		mission = buildMission(ctx, cfg, db, loc, logger)
	}

	google := opts.Google
	if google == nil && cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	}

	if err := s.setupRoutes(tokens, loc, mission, google); err != nil {
		s.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

// buildMission assembles Fallback(Daily(Chain{GenAI, Feed})). Sources that
// are not configured are left out; with none, the fallback text is served.
func buildMission(ctx context.Context, cfg *config.Config, db *sqliteRepo.DB, loc *time.Location, logger *slog.Logger) inspiration.Provider {
	var chain inspiration.Chain
	if key := cfg.Inspiration.APIKey; key != "" {
		g, err := inspiration.NewGenAI(ctx, key, cfg.Inspiration.Model, cfg.Inspiration.Prompt)
		if err != nil {
			logger.Warn("gemini disabled", slog.String("error", err.Error()))
		} else {
			chain = append(chain, g)
		}
	}
	if url := cfg.Inspiration.FeedURL; url != "" {
		chain = append(chain, inspiration.NewFeed(url))
	}

	var p inspiration.Provider
	if len(chain) > 0 {
		p = inspiration.NewDaily(chain, db, loc)
	}
	return inspiration.NewFallback(p, cfg.Inspiration.Fallback, cfg.InspirationTimeout(), logger)
}

// setupRoutes mounts the middleware and the routes.
//
// ROUTES:
//
//	GET    /                             mural page
//	GET    /healthz                      probe
//	GET    /live                         websocket
//	GET    /api/actions                  snapshot
//	POST   /api/actions                  register (auth)
//	GET    /api/stats                    stats, "mine" with a session
//	GET    /api/inspiration              mission of the day
//	GET    /api/spiral                   coordinates
//	POST   /api/members/{signup,login,logout}
//	GET    /api/me                       (auth)
//	GET    /api/admin/members            (admin)
//	PUT    /api/admin/members/{id}/status (admin)
//	DELETE /api/admin/members/{id}       (admin)
//	DELETE /api/admin/actions/{id}       (admin)
//	GET    /auth/google/{login,callback} when Google is configured
//
// Compress wraps everything but /live: a compressing writer can't be
// hijacked for the websocket upgrade.
func (s *Server) setupRoutes(tokens *auth.TokenService, loc *time.Location, mission inspiration.Provider, google handler.GoogleExchanger) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	pins := auth.NewPINService()
	members := service.NewMemberService(s.db.Members(), tokens, pins, s.cfg.AdminEmails, s.logger)
	actions := service.NewActionService(s.hub, s.db.Members(), s.logger)
	builder := mural.NewBuilder(category.Default(), loc)

	s.live = live.NewHandler(live.Config{
		Source:    s.hub,
		Builder:   builder,
		Registrar: actions,
		Mission:   mission,
		Viewport:  s.cfg.Viewport,
		CellSize:  s.cfg.Feed.CellSize,
		Location:  loc,
		Logger:    s.logger,
	})

	pageHandler, err := handler.NewPageHandler(s.rec, builder, s.cfg.Viewport, mission, s.logger)
	if err != nil {
		return err
	}
	actionHandler := handler.NewActionHandler(actions, members, s.rec, builder, s.logger)
	memberHandler := handler.NewMemberHandler(members, s.logger)
	missionHandler := handler.NewInspirationHandler(mission)
	healthHandler := handler.NewHealthHandler(s.db, s.hub.Subscribers, s.logger)

	optional := auth.OptionalAuth(tokens)

	s.router.With(optional).Get("/live", s.live.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))

		r.Get("/healthz", healthHandler.HandleHealth)
		r.With(optional).Get("/", pageHandler.HandleMural)

		r.Route("/api", func(r chi.Router) {
			r.Get("/actions", actionHandler.HandleList)
			r.With(auth.RequireAuth(tokens)).Post("/actions", actionHandler.HandleRegister)
			r.With(optional).Get("/stats", actionHandler.HandleStats)
			r.Get("/inspiration", missionHandler.HandleMission)
			r.Get("/spiral", actionHandler.HandleSpiral)

			r.Post("/members/signup", memberHandler.HandleSignup)
			r.Post("/members/login", memberHandler.HandleLogin)
			r.Post("/members/logout", memberHandler.HandleLogout)
			r.With(auth.RequireAuth(tokens)).Get("/me", memberHandler.HandleMe)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin(tokens))
				r.Get("/members", memberHandler.HandleList)
				r.Put("/members/{id}/status", memberHandler.HandleUpdateStatus)
				r.Delete("/members/{id}", memberHandler.HandleDelete)
				r.Delete("/actions/{id}", actionHandler.HandleDelete)
			})
		})

		if google != nil {
			googleHandler := handler.NewGoogleAuthHandler(google, members, s.logger)
			r.Get("/auth/google/login", googleHandler.HandleLogin)
			r.Get("/auth/google/callback", googleHandler.HandleCallback)
			s.logger.Info("google sign-in enabled", slog.String("callback", s.cfg.Google.CallbackURL))
		}
	})

	return nil
}

// Handler is the root HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions is the number of open /live sessions.
func (s *Server) Sessions() int {
	return s.live.Sessions()
}

// Run serves HTTP and polls the store until ctx is cancelled, then shuts
// down: HTTP first, then the hub, then the database.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	// No Read/WriteTimeout: /live connections stay open for as long as the
	// mural is on screen and manage their own deadlines.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.hub.Run(gctx, s.cfg.PollInterval())
	})

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("database", s.cfg.DBPath),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listening: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// Close releases the server's subscription, ends every hub subscription and
// closes the database. Run calls it; tests that never Run call it directly.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.hub.Close()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
