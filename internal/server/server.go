// Package server exposes the cleaner over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/rawready/internal/analysis"
	"github.com/KaramelBytes/rawready/internal/audit"
	"github.com/KaramelBytes/rawready/internal/clean"
)

// Options configures a Server.
type Options struct {
	Addr string
	// MaxUploadBytes caps request bodies. 0 disables the cap.
	MaxUploadBytes int64
	// RateLimit is the sustained request rate across all clients. 0 disables
	// limiting.
	RateLimit float64
	// Delimiter is used to read and write CSV bodies. 0 means ','.
	Delimiter rune
	// MaxValues caps the values one canonicalize request may carry. 0 means
	// DefaultMaxValues.
	MaxValues int
	// Clean holds the defaults that form fields override. A zero value means
	// clean.DefaultOptions. Its fuzzy settings are also the canonicalize
	// defaults.
	Clean   clean.Options
	Profile analysis.Options
}

// DefaultMaxValues bounds the quadratic canonicalize pass per request.
const DefaultMaxValues = 10000

// Server is the HTTP front end. The zero value is not usable; call New.
type Server struct {
	opt    Options
	log    *zap.Logger
	audit  *audit.Store
	engine *gin.Engine
}

// New builds the router. store may be nil, in which case runs are not
// recorded.
func New(opt Options, store *audit.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Clean.FillMethod == "" {
		opt.Clean = clean.DefaultOptions()
	}
	if opt.MaxValues <= 0 {
		opt.MaxValues = DefaultMaxValues
	}
	s := &Server{opt: opt, log: log, audit: store}

	r := gin.New()
	r.Use(requestID(), accessLog(log), recovery(log))
	if opt.RateLimit > 0 {
		burst := int(opt.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(opt.RateLimit), burst)))
	}

	v1 := r.Group("/v1")
	v1.GET("/health", s.health)
	up := v1.Group("", maxBody(opt.MaxUploadBytes))
	up.POST("/canonicalize", s.canonicalize)
	up.POST("/clean", s.clean)
	up.POST("/profile", s.profile)

	s.engine = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opt.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.opt.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
