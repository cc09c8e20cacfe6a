// Package server is a read-only ops surface over the pipeline: kanban
// counts, graph connectivity, and the schema report. It serves curators
// checking on a long-running ingestion; it is not the public front-end.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/driver"
	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/qa"
)

type Server struct {
	Store  *kanban.Store
	Driver driver.GraphDriver
	Log    *zap.Logger
}

func NewServer(store *kanban.Store, d driver.GraphDriver, log *zap.Logger) *Server {
	return &Server{Store: store, Driver: d, Log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/qa/schema", s.handleSchema)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.Store.Status()
	if err != nil {
		s.Log.Error("status read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	graph := "ok"
	if _, err := s.Driver.ExecuteQuery(c.Request.Context(), "RETURN 1 AS ok", nil); err != nil {
		graph = "unreachable"
	}

	c.JSON(http.StatusOK, gin.H{
		"queues": status,
		"graph":  graph,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	prober := qa.NewProber(s.Driver, s.Log)
	report, err := prober.SchemaConsistency(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
