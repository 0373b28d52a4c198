// Package httpserver exposes the single-flow prediction service.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/netsift/flowtriage/internal/archive"
	"github.com/netsift/flowtriage/internal/model"
)

// Server serves flow classifications over HTTP. It is stateless across
// requests: no sessions, no caching of prior classifications. The optional
// archive records served predictions for later querying; it never feeds
// back into classification.
type Server struct {
	addr       string
	classifier model.FlowClassifier
	arch       *archive.Store
	ready      atomic.Bool
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// NewServer creates the prediction service. The classifier must already
// hold fully loaded models; SetReady opens the readiness gate once the
// caller has finished startup.
func NewServer(addr string, classifier model.FlowClassifier, arch *archive.Store) *Server {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		classifier: classifier,
		arch:       arch,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetReady opens the readiness gate. Until this is called, /health reports
// loading and /predict_one refuses requests without touching the models.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := s.routes()

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.POST("/predict_one", s.handlePredictOne)
	r.GET("/stats", s.handleStats)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"uptime": time.Since(s.startTime).String(),
	})
}

// predictRequest is the 7-field flow description. Pointer fields distinguish
// an absent field from a legitimate zero value, so a zero-duration flow
// still validates.
type predictRequest struct {
	Dur    *float64 `json:"dur" binding:"required"`
	Spkts  *int64   `json:"spkts" binding:"required"`
	Dpkts  *int64   `json:"dpkts" binding:"required"`
	Sbytes *int64   `json:"sbytes" binding:"required"`
	Dbytes *int64   `json:"dbytes" binding:"required"`
	Proto  *string  `json:"proto" binding:"required"`
	State  *string  `json:"state" binding:"required"`
}

// predictResponse fixes the wire contract for the absent secondary label:
// dos_vs_other is JSON null whenever the binary stage says normal.
type predictResponse struct {
	BinaryLabel string  `json:"binary_label"`
	DosVsOther  *string `json:"dos_vs_other"`
	FinalLabel  string  `json:"final_label"`
}

func (s *Server) handlePredictOne(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "models are still loading"})
		return
	}

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A schema violation is the client's problem: no inference is
		// attempted and it is never a 5xx. Missing and mistyped fields are
		// 422; a body that is not valid JSON at all is 400.
		var verr validator.ValidationErrors
		var terr *json.UnmarshalTypeError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "missing or invalid fields: " + verr.Error()})
			return
		}
		if errors.As(err, &terr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "mistyped field: " + terr.Field})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	fv := model.FeatureVector{
		Proto:  *req.Proto,
		State:  *req.State,
		Spkts:  *req.Spkts,
		Dpkts:  *req.Dpkts,
		Sbytes: *req.Sbytes,
		Dbytes: *req.Dbytes,
		Dur:    *req.Dur,
	}

	labels, err := s.classifier.Classify(fv)
	if err != nil {
		// Genuine internal failure; the process keeps serving.
		log.Printf("httpserver: inference failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inference failed"})
		return
	}

	resp := predictResponse{
		BinaryLabel: labels.Binary,
		FinalLabel:  labels.Final,
	}
	if labels.Secondary != "" {
		resp.DosVsOther = &labels.Secondary
	}

	if s.arch != nil {
		if err := s.arch.InsertBatch([]archive.Record{{Ts: time.Now(), Flow: fv, Labels: labels}}); err != nil {
			// Archival is best-effort; the prediction already succeeded.
			log.Printf("httpserver: archive insert failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.arch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
		return
	}
	counts, err := s.arch.LabelCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive"})
		return
	}
	total, err := s.arch.TotalCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "final_labels": counts})
}
