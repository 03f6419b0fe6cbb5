package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faisal-shah/logmerge/internal/aggregator"
	"github.com/faisal-shah/logmerge/internal/hub"
	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/output"
	"github.com/faisal-shah/logmerge/internal/schema"
	"github.com/faisal-shah/logmerge/internal/store"
	"github.com/faisal-shah/logmerge/internal/supervisor"
)

const defaultRowLimit = 1000

// Config wires the server to a running merge session.
type Config struct {
	Addr       string
	Schema     *schema.Schema
	Columns    []string // default projection
	TimeLayout string
	Supervisor *supervisor.Supervisor
	Hub        *hub.Hub
	Aggregator *aggregator.Aggregator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Server holds the Gin engine and the merge session it exposes.
type Server struct {
	engine *gin.Engine
	cfg    Config
	logger *slog.Logger
}

// New creates the HTTP API server.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(cfg.Columns) == 0 {
		cfg.Columns = cfg.Schema.Columns()
	}

	s := &Server{engine: engine, cfg: cfg, logger: logger}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/schema", s.handleSchema)
	api.GET("/rows", s.handleRows)
	api.GET("/files", s.handleFiles)
	api.PUT("/files", s.handleUpdateFiles)

	// WebSocket.
	s.engine.GET("/ws", s.handleWebSocket)

	if s.cfg.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.cfg.Metrics.Handler()))
	}

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

func (s *Server) handleHealth(c *gin.Context) {
	sup := s.cfg.Supervisor
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"running":       sup.Running(),
		"files_watched": len(sup.Files()),
		"records":       sup.Store().Len(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.cfg.Aggregator == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats are not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Aggregator.Snapshot())
}

func (s *Server) handleSchema(c *gin.Context) {
	type field struct {
		Name     string   `json:"name"`
		Type     string   `json:"type"`
		Discrete bool     `json:"discrete"`
		Enum     []string `json:"enum,omitempty"`
	}
	sc := s.cfg.Schema
	fields := make([]field, 0, len(sc.Fields))
	for _, fd := range sc.Fields {
		f := field{Name: fd.Name, Type: fd.Type.String(), Discrete: fd.Discrete}
		for _, opt := range fd.Enum {
			f.Enum = append(f.Enum, opt.Name)
		}
		fields = append(fields, f)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":            sc.Name,
		"timestamp_field": sc.TimestampField,
		"fields":          fields,
		"columns":         sc.Columns(),
	})
}

// handleRows returns the last `limit` records matching every `where`
// expression, projected onto `columns`.
func (s *Server) handleRows(c *gin.Context) {
	columns := s.cfg.Columns
	if raw := c.Query("columns"); raw != "" {
		columns = splitList(raw)
	}
	for _, col := range columns {
		if _, ok := s.cfg.Schema.Field(col); !ok && col != model.SourceFileColumn {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown column " + strconv.Quote(col)})
			return
		}
	}

	limit := defaultRowLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	filter, err := store.ParseWhere(c.QueryArray("where"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if raw := c.Query("since"); raw != "" {
		since, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be epoch seconds"})
			return
		}
		filter = store.And(filter, store.Since(since))
	}

	st := s.cfg.Supervisor.Store()
	f := output.NewFormatter(s.cfg.Schema, columns, s.cfg.TimeLayout)

	// Keep only the newest `limit` matches.
	var rows []output.Object
	var matched int
	for row := range st.QueryRows(columns, filter) {
		matched++
		rows = append(rows, f.Object(row))
		if len(rows) > limit {
			rows = rows[1:]
		}
	}
	if rows == nil {
		rows = []output.Object{}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns": columns,
		"rows":    rows,
		"matched": matched,
		"total":   st.Len(),
	})
}

func (s *Server) handleFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": s.cfg.Supervisor.Watchers()})
}

func (s *Server) handleUpdateFiles(c *gin.Context) {
	var req struct {
		Files []string `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.Supervisor.UpdateFileList(req.Files); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, supervisor.ErrNotRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": s.cfg.Supervisor.Files()})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
