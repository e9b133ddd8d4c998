// Package status serves a read-only HTTP view of the monitor: health, last
// cycle, quota, cached schedule and recent alerts.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pickupwatch/internal/activehours"
	"pickupwatch/internal/gamecache"
	"pickupwatch/internal/monitor"
	"pickupwatch/internal/notifier"
	"pickupwatch/internal/quota"
	"pickupwatch/internal/runtime/supervisor"
	"pickupwatch/internal/task/scheduler"
	logx "pickupwatch/pkg/logx"
)

const DefaultAddr = "127.0.0.1:8089"

type (
	MonitorView interface {
		Last() (monitor.Report, bool)
		Window() activehours.Window
	}
	QuotaView interface{ Status() quota.State }
	CacheView interface {
		Peek(ctx context.Context) (gamecache.Entry, bool)
	}
	NotifierView interface {
		Stats() notifier.Stats
		Snapshot() []notifier.HistoryItem
	}
	WatermarkView interface {
		Watermark(ctx context.Context) (time.Time, bool)
	}
	SchedulerView  interface{ Snapshot() scheduler.Snapshot }
	SupervisorView interface{ Snapshot() []supervisor.Stats }
)

// Sources are the components the server reads. Nil members are omitted from
// the output.
type Sources struct {
	Monitor    MonitorView
	Quota      QuotaView
	Cache      CacheView
	Notifier   NotifierView
	Watermark  WatermarkView
	Scheduler  SchedulerView
	Supervisor SupervisorView
}

// Config controls the listener. A non-loopback Addr requires Token.
type Config struct {
	Addr  string
	Token string
	// Pprof mounts net/http/pprof under /debug/pprof/ behind the same token.
	Pprof bool
}

type Server struct {
	addr   string
	token  string
	src    Sources
	log    logx.Logger
	now    func() time.Time
	router *gin.Engine
}

func New(cfg Config, src Sources, log logx.Logger) *Server {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		addr:  addr,
		token: strings.TrimSpace(cfg.Token),
		src:   src,
		log:   log.With(logx.String("comp", "status")),
		now:   time.Now,
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", s.health)

	authed := r.Group("/", s.auth())
	authed.GET("/status", s.status)
	authed.GET("/status/alerts", s.alerts)
	if cfg.Pprof {
		mountPprof(authed.Group("/debug/pprof"))
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.token == "" && !isLoopbackAddr(s.addr) {
		return fmt.Errorf("status server refused to start: %s is not loopback and no token is set", s.addr)
	}
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", logx.String("addr", s.addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		s.log.Warn("shutdown incomplete", logx.Err(err))
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		s.log.Debug("request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().UTC()})
}

func (s *Server) status(c *gin.Context) {
	ctx := c.Request.Context()
	now := s.now()
	out := gin.H{"time": now.UTC()}

	if m := s.src.Monitor; m != nil {
		w := m.Window()
		out["active"] = w.Allow(now)
		out["week"] = w.Identity(now)
		if r, ok := m.Last(); ok {
			out["last_check"] = r
		}
	}
	if wm := s.src.Watermark; wm != nil {
		if t, ok := wm.Watermark(ctx); ok {
			out["watermark"] = t
		}
	}
	if q := s.src.Quota; q != nil {
		out["quota"] = q.Status()
	}
	if cv := s.src.Cache; cv != nil {
		if e, ok := cv.Peek(ctx); ok {
			out["game_times"] = gin.H{
				"week_range": e.WeekRange,
				"cached_at":  e.CachedAt,
				"teams":      len(e.GameTimes),
			}
		}
	}
	if n := s.src.Notifier; n != nil {
		out["notifier"] = n.Stats()
	}
	if sc := s.src.Scheduler; sc != nil {
		out["scheduler"] = sc.Snapshot()
	}
	if sv := s.src.Supervisor; sv != nil {
		out["goroutines"] = sv.Snapshot()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) alerts(c *gin.Context) {
	if s.src.Notifier == nil {
		c.JSON(http.StatusOK, gin.H{"alerts": []notifier.HistoryItem{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": s.src.Notifier.Snapshot()})
}
