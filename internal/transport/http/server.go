package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"omerta/internal/feedback"
	"omerta/internal/learning"
	"omerta/internal/logger"
	"omerta/internal/store"
)

const maxIngressBody = 1 << 20

// Server exposes the ledger over HTTP: decision ingress for external
// producers, learning stats, and a manual feedback trigger.
type Server struct {
	addr       string
	ledger     store.DecisionLedger
	evaluator  *feedback.Evaluator
	aggregator *learning.Aggregator
	statsDays  int
	router     *gin.Engine
	nowFn      func() time.Time
}

// Config describes the server's dependencies.
type Config struct {
	Addr       string
	Ledger     store.DecisionLedger
	Evaluator  *feedback.Evaluator
	Aggregator *learning.Aggregator
	StatsDays  int
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9984"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:       cfg.Addr,
		ledger:     cfg.Ledger,
		evaluator:  cfg.Evaluator,
		aggregator: cfg.Aggregator,
		statsDays:  cfg.StatsDays,
		router:     router,
		nowFn:      time.Now,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.POST("/decisions", s.handleDecisionIngress)
	api.GET("/learning/stats", s.handleLearningStats)
	api.GET("/learning/report", s.handleLearningReport)
	api.GET("/learning/chart", s.handleLearningChart)
	api.POST("/feedback/run", s.handleFeedbackRun)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDecisionIngress(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngressBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	inputs, err := ParseDecisionPayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := s.ledger.LogDecisions(c.Request.Context(), inputs, s.nowFn().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("ingress: accepted %d decisions (%d submitted)", n, len(inputs))
	c.JSON(http.StatusOK, gin.H{"accepted": n, "submitted": len(inputs)})
}

// statsForRequest resolves the window (query override falling back to the
// configured default) and computes stats. It writes the error response itself
// and reports ok=false when the caller should stop.
func (s *Server) statsForRequest(c *gin.Context) (learning.Stats, int, bool) {
	if s.aggregator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "learning stats not enabled"})
		return learning.Stats{}, 0, false
	}
	days := s.statsDays
	if q := c.Query("days"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
			return learning.Stats{}, 0, false
		}
		days = v
	}
	stats, err := s.aggregator.ComputeStats(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return learning.Stats{}, 0, false
	}
	return stats, days, true
}

func (s *Server) handleLearningStats(c *gin.Context) {
	stats, days, ok := s.statsForRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"window_days": days, "stats": stats})
}

// handleLearningReport serves the same summary the Telegram push carries, as
// plain text.
func (s *Server) handleLearningReport(c *gin.Context) {
	stats, days, ok := s.statsForRequest(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, strings.Join(learning.RenderLines(stats, days), "\n")+"\n")
}

func (s *Server) handleLearningChart(c *gin.Context) {
	stats, days, ok := s.statsForRequest(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := learning.RenderAccuracyChart(c.Writer, stats, days); err != nil {
		logger.Warnf("chart render failed: %v", err)
	}
}

func (s *Server) handleFeedbackRun(c *gin.Context) {
	if s.evaluator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluator not enabled"})
		return
	}
	outcomes, err := s.evaluator.RunFeedbackPass(c.Request.Context())
	if err != nil {
		if errors.Is(err, feedback.ErrPassInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluated": len(outcomes), "outcomes": outcomes})
}

// Start runs the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
