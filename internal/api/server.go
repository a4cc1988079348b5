// Package api serves the running simulation over HTTP. GET endpoints are
// read-only observation; POST endpoints queue play commands that apply
// between steps.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/engine"
	"github.com/talgya/domacity/internal/play"
	"github.com/talgya/domacity/internal/stats"
)

// Server exposes the simulation. The mutex is shared with the step loop:
// the loop holds it while a month runs, handlers hold it while reading.
type Server struct {
	Sim    *engine.Simulation
	Play   *play.Manager
	Mu     *sync.Mutex
	BurnIn int
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	api := router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/city", s.getCity)
		api.GET("/units/:id", s.getUnit)
		api.GET("/tenants/:id", s.getTenant)
		api.GET("/policies", s.getPolicies)
		api.POST("/sessions", s.postSession)
		api.POST("/commands", s.postCommand)
	}
	return router
}

// Start serves the API in a goroutine.
func (s *Server) Start(addr string) {
	slog.Info("http api starting", "addr", addr)
	go func() {
		if err := s.Router().Run(addr); err != nil {
			slog.Error("http server error", "err", err)
		}
	}()
}

func (s *Server) getStatus(c *gin.Context) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	snap := stats.Collect(s.Sim.Month, s.Sim.City, s.Sim.Tenants, s.Sim.Fund)
	c.JSON(http.StatusOK, gin.H{
		"month":   s.Sim.Month,
		"burnIn":  s.Sim.Month < s.BurnIn,
		"stats":   snap,
		"pending": s.Play.Pending(),
	})
}

func (s *Server) getCity(c *gin.Context) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	sim := s.Sim
	c.JSON(http.StatusOK, gin.H{
		"name":          sim.Design.City.Name,
		"rows":          sim.City.Grid.Rows(),
		"cols":          sim.City.Grid.Cols(),
		"units":         len(sim.City.Units),
		"tenants":       len(sim.Tenants),
		"landlords":     len(sim.Landlords),
		"neighborhoods": sim.City.Neighborhoods,
		"parcels":       sim.City.Parcels(),
	})
}

func (s *Server) getUnit(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit id must be an integer"})
		return
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if id < 0 || id >= len(s.Sim.City.Units) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such unit"})
		return
	}
	u := s.Sim.City.Units[id]
	c.JSON(http.StatusOK, gin.H{
		"unit":   u,
		"parcel": s.Sim.City.ParcelForUnit(u),
	})
}

func (s *Server) getTenant(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant id must be an integer"})
		return
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if id < 0 || id >= len(s.Sim.Tenants) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such tenant"})
		return
	}
	t := s.Sim.Tenants[id]
	resp := gin.H{
		"tenant":     t,
		"fundMember": s.Sim.Fund.IsMember(id),
		"shares":     s.Sim.Fund.Shares[id],
	}
	if t.Unit != agents.NoUnit {
		resp["unit"] = s.Sim.City.Units[t.Unit]
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getPolicies(c *gin.Context) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"policies": s.Sim.Policies})
}

type sessionRequest struct {
	TenantID int `json:"tenantId" binding:"min=0"`
}

// postSession claims a tenant for a player and queues the takeover.
func (s *Server) postSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.Mu.Lock()
	inRange := req.TenantID < len(s.Sim.Tenants)
	s.Mu.Unlock()
	if !inRange {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such tenant"})
		return
	}

	session, err := s.Play.Claim(req.TenantID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.Play.Enqueue(play.Command{
		Session:  session.ID,
		Kind:     play.CmdSelectTenant,
		TenantID: req.TenantID,
	})
	c.JSON(http.StatusCreated, session)
}

type commandRequest struct {
	Session uuid.UUID        `json:"session" binding:"required"`
	Kind    play.CommandKind `json:"kind" binding:"required"`
	UnitID  int              `json:"unitId"`
	Amount  float64          `json:"amount"`
	Policy  string           `json:"policy"`
	Months  int              `json:"months"`
}

// postCommand queues a command for the session's tenant. Commands are
// rejected while the simulation is still burning in.
func (s *Server) postCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID, ok := s.Play.SessionTenant(req.Session)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown session"})
		return
	}

	s.Mu.Lock()
	burning := s.Sim.Month < s.BurnIn
	s.Mu.Unlock()
	if burning {
		c.JSON(http.StatusConflict, gin.H{"error": "simulation is burning in"})
		return
	}

	id := s.Play.Enqueue(play.Command{
		Session:  req.Session,
		Kind:     req.Kind,
		TenantID: tenantID,
		UnitID:   req.UnitID,
		Amount:   req.Amount,
		Policy:   req.Policy,
		Months:   req.Months,
	})
	c.JSON(http.StatusAccepted, gin.H{"command": id})
}
