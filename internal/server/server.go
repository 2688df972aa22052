// Package server exposes the feed, stats and admin connect flow over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/internal/app"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

const (
	syncTimeout     = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	stateTTL        = 10 * time.Minute
)

// Server serves the JSON API.
type Server struct {
	app    *app.App
	logger *zap.Logger
	states *stateSet
	router *gin.Engine
}

// New builds the router for a.
func New(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger.Named("server"),
		states: newStateSet(stateTTL, time.Now),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	if origins := s.app.Config.Server.AllowedOrigins; len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/feed", s.getFeed)
		api.GET("/stats", s.getStats)
		api.GET("/connect/:platform", s.connect)
		api.GET("/callback/:platform", s.callback)
	}

	return router
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.Config.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) feedOptions(c *gin.Context) (aggregator.FeedOptions, error) {
	opts := aggregator.FeedOptions{Limit: s.app.Config.Limit}

	if name := c.Query("platform"); name != "" {
		p, err := oauth.ParsePlatform(name)
		if err != nil {
			return opts, err
		}
		opts.Platforms = []oauth.Platform{p}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid limit %q: must be a non-negative integer", raw)
		}
		opts.Limit = n
	}
	return opts, nil
}

func (s *Server) getFeed(c *gin.Context) {
	opts, err := s.feedOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("cached") == "true" && s.app.Posts != nil {
		posts, err := s.app.CachedFeed(c.Request.Context(), opts)
		if err != nil {
			s.logger.Error("failed to read post cache", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read post cache"})
			return
		}
		c.JSON(http.StatusOK, posts)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), syncTimeout)
	defer cancel()
	c.JSON(http.StatusOK, s.app.Feed(ctx, opts))
}

func (s *Server) getStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), syncTimeout)
	defer cancel()
	c.JSON(http.StatusOK, s.app.Stats(ctx))
}

func (s *Server) connect(c *gin.Context) {
	p, err := oauth.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	authURL, state, err := s.app.AuthorizationURL(p, "", "")
	if err != nil {
		s.logger.Error("cannot start authorization", zap.String("platform", string(p)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.states.add(state, p)
	c.Redirect(http.StatusFound, authURL)
}

func (s *Server) callback(c *gin.Context) {
	p, err := oauth.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if denied := c.Query("error"); denied != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization denied: " + denied, "description": c.Query("error_description")})
		return
	}

	started, ok := s.states.take(c.Query("state"))
	if !ok || !sameApp(started, p) {
		c.JSON(http.StatusBadRequest, gin.H{"error": oauth.ErrInvalidState.Error()})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callback did not include an authorization code"})
		return
	}

	creds, err := s.app.Complete(c.Request.Context(), started, code, "")
	if err != nil {
		s.logger.Warn("authorization failed", zap.String("platform", string(started)), zap.Error(err))
		status := http.StatusInternalServerError
		var apiErr *oauth.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	linked := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		linked = append(linked, gin.H{"platform": cred.Platform, "expires_at": cred.ExpiresAt})
	}
	s.logger.Info("platform connected", zap.String("platform", string(started)))
	c.JSON(http.StatusOK, gin.H{"linked": linked})
}

// sameApp reports whether a callback for got may complete an authorization
// started for want. Facebook and Instagram share one redirect.
func sameApp(want, got oauth.Platform) bool {
	return want == got || (isMeta(want) && isMeta(got))
}

func isMeta(p oauth.Platform) bool {
	return p == oauth.PlatformFacebook || p == oauth.PlatformInstagram
}
