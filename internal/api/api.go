// Package api exposes the HTTP trigger for pipeline runs.
//
//	POST /start_etl   form: userExperiments, users, compounds
//	GET  /runs/:id    run status
//	GET  /healthz
//	GET  /metrics     when a metrics handler is configured
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"userstats/internal/etlerr"
	"userstats/internal/pipeline"
)

// Form keys of POST /start_etl.
const (
	KeyUserExperiments = "userExperiments"
	KeyUsers           = "users"
	KeyCompounds       = "compounds"
)

// Runs starts and looks up pipeline runs. *pipeline.Manager implements it.
type Runs interface {
	Start(ctx context.Context, params pipeline.Params) (*pipeline.Run, error)
	Get(id string) (*pipeline.Run, bool)
}

// Options configures the router.
type Options struct {
	Runs Runs
	// Base carries the data root and destination; the trigger fills in the
	// three file names per request.
	Base   pipeline.Params
	Logger *zap.Logger
	// Metrics serves GET /metrics when non-nil.
	Metrics http.Handler
}

// Response is the JSON body of POST /start_etl.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

type server struct {
	runs Runs
	base pipeline.Params
	log  *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{runs: opts.Runs, base: opts.Base, log: log}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestMetrics(), requestLog(log))

	r.POST("/start_etl", s.startETL)
	r.GET("/runs/:id", s.getRun)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{Message: "Use POST"})
	})
	return r
}

func (s *server) startETL(c *gin.Context) {
	experiments, ok1 := c.GetPostForm(KeyUserExperiments)
	users, ok2 := c.GetPostForm(KeyUsers)
	compounds, ok3 := c.GetPostForm(KeyCompounds)
	if !ok1 || !ok2 || !ok3 {
		c.JSON(http.StatusBadRequest, Response{
			Message: "Need string values for all the following keys in the submitted POST form data: " +
				strings.Join([]string{KeyUserExperiments, KeyUsers, KeyCompounds}, ","),
		})
		return
	}

	params := s.base
	params.ExperimentsFile = experiments
	params.UsersFile = users
	params.CompoundsFile = compounds

	run, err := s.runs.Start(c.Request.Context(), params)
	if err != nil {
		status, msg := classify(err)
		s.log.Warn("start_etl rejected", zap.Int("status", status), zap.Error(err))
		c.JSON(status, Response{Message: msg})
		return
	}

	s.log.Info("start_etl accepted", zap.String("run_id", run.ID))
	c.JSON(http.StatusAccepted, Response{Success: true, Message: "Started ETL job", RunID: run.ID})
}

// classify maps a Start error to a status code and a client message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict, "An ETL job is already running for this destination"
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable, "Server is shutting down"
	case errors.Is(err, etlerr.ErrMissingInput):
		return http.StatusNotFound, "Failed to open a file: " + err.Error()
	default:
		return http.StatusInternalServerError, "Failure: " + err.Error()
	}
}

func (s *server) getRun(c *gin.Context) {
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{Message: "unknown run"})
		return
	}
	c.JSON(http.StatusOK, run.Info())
}
