// The HTTP adapter: a thin gin surface around the dispatch core.
//
// Two locks uphold the core's external concurrency contract: initMu makes
// driver registration and system start mutually exclusive (registration is
// rejected once the system exists), and routingMu keeps at most one
// orchestrator run in flight. The core itself is single-writer behind stateMu.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
	"github.com/dispatch-sim/dispatch-sim/dispatch/solver"
)

// Server owns the singleton dispatch system and the pre-start driver list.
type Server struct {
	initMu    sync.Mutex
	routingMu sync.Mutex
	stateMu   sync.Mutex

	drivers []*dispatch.Vehicle
	system  *dispatch.System

	hub      *Hub
	seed     int64
	upgrader websocket.Upgrader
}

// New builds a server with no system started. seed feeds the solver RNG.
func New(seed int64) *Server {
	return &Server{
		hub:  NewHub(),
		seed: seed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router wires the HTTP surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/", s.health)
	r.POST("/drivers", s.addDriver)
	r.GET("/drivers", s.listDrivers)
	r.POST("/start_system", s.startSystem)
	r.POST("/orders", s.submitOrder)
	r.POST("/update_routes", s.updateRoutes)
	r.POST("/advance_time", s.advanceTime)
	r.GET("/monitor", s.monitor)
	r.GET("/ws/:client_id", s.websocketEndpoint)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "dynamic route planner"})
}

type driverRequest struct {
	ID       int `json:"id" binding:"required"`
	Capacity int `json:"capacity" binding:"required,gt=0"`
}

func (s *Server) addDriver(c *gin.Context) {
	var req driverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.started() {
		c.JSON(http.StatusConflict, gin.H{"detail": "cannot add drivers after the system has been initialized"})
		return
	}
	if lo.SomeBy(s.drivers, func(v *dispatch.Vehicle) bool { return v.ID == req.ID }) {
		c.JSON(http.StatusConflict, gin.H{"detail": fmt.Sprintf("driver with id %d already exists", req.ID)})
		return
	}
	s.drivers = append(s.drivers, dispatch.NewVehicle(req.ID, req.Capacity))
	c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("driver %d registered", req.ID), "driver": req})
}

func (s *Server) listDrivers(c *gin.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.system != nil {
		c.JSON(http.StatusOK, s.system.VehiclesSnapshot())
		return
	}
	vehicles := lo.Map(s.drivers, func(v *dispatch.Vehicle, _ int) *dispatch.Vehicle { return v.Clone() })
	c.JSON(http.StatusOK, vehicles)
}

type startRequest struct {
	ClusteringAlgo string         `json:"clustering_algo"`
	RoutingAlgo    string         `json:"routing_algo"`
	HybridAlgo     string         `json:"hybrid_algo"`
	DepotOrigin    dispatch.Point `json:"depot_origin" binding:"required"`
	StartTime      string         `json:"start_time" binding:"required"`
	EndTime        string         `json:"end_time"`
}

// parseInstant accepts RFC3339 or a naive "2006-01-02T15:04:05" timestamp,
// interpreting naive values as UTC.
func parseInstant(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (s *Server) startSystem(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.started() {
		c.JSON(http.StatusConflict, gin.H{"detail": "system has already been initialized"})
		return
	}
	if len(s.drivers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot start system without registered drivers"})
		return
	}

	cfg := dispatch.DefaultSimulationConfig()
	cfg.ClusteringAlgo = dispatch.ClusteringAlgorithm(req.ClusteringAlgo)
	cfg.RoutingAlgo = dispatch.RoutingAlgorithm(req.RoutingAlgo)
	cfg.HybridAlgo = dispatch.HybridAlgorithm(req.HybridAlgo)
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	start, err := parseInstant(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	sol, err := solver.New(cfg, dispatch.NewPartitionedRNG(s.seed))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	sys, err := dispatch.NewSystem(cfg, sol, s.drivers, req.DepotOrigin, start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	s.system = sys
	s.drivers = nil
	logrus.Infof("system initialized at %s with config %+v", start.Format(time.RFC3339), cfg)
	c.JSON(http.StatusOK, gin.H{"message": "system initialized", "config": cfg})
}

type orderRequest struct {
	ID          string         `json:"id" binding:"required"`
	Point       dispatch.Point `json:"point" binding:"required"`
	Size        int            `json:"size" binding:"required,gt=0"`
	Preparation int            `json:"preparation" binding:"required,gt=0"`
	Time        int            `json:"time" binding:"required,gt=0"`
}

func (s *Server) submitOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	s.stateMu.Lock()
	if s.system == nil {
		s.stateMu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"detail": "system has not been initialized"})
		return
	}
	d, err := dispatch.NewDelivery(req.ID, req.Point, req.Size, req.Preparation, req.Time, s.system.SimulationTime)
	if err == nil {
		err = s.system.AddNewDelivery(d)
	}
	s.stateMu.Unlock()
	if err != nil {
		detail := err.Error()
		if errors.Is(err, dispatch.ErrDuplicateDelivery) {
			detail = fmt.Sprintf("order %s already exists", req.ID)
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
		return
	}

	s.hub.Broadcast(string(dispatch.NotifyNewDelivery), d.Clone())

	// Admission triggers an immediate routing pass.
	s.runRoutingPass()

	c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("order %s accepted", req.ID)})
}

func (s *Server) updateRoutes(c *gin.Context) {
	s.stateMu.Lock()
	started := s.system != nil
	s.stateMu.Unlock()
	if !started {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "system has not been initialized"})
		return
	}
	s.runRoutingPass()
	c.JSON(http.StatusOK, gin.H{"message": "route optimization triggered"})
}

// runRoutingPass executes one orchestrator run under the routing lock and
// broadcasts the dispatch events plus a full routes snapshot.
func (s *Server) runRoutingPass() {
	s.routingMu.Lock()
	defer s.routingMu.Unlock()

	s.stateMu.Lock()
	if s.system == nil {
		s.stateMu.Unlock()
		return
	}
	notifs, err := s.system.RoutingDecisionLogic()
	snapshot := s.system.RoutesSnapshot()
	s.stateMu.Unlock()

	if err != nil {
		logrus.Errorf("routing pass failed: %v", err)
		return
	}
	for _, n := range notifs {
		s.hub.Broadcast(string(n.Type), n.Data)
	}
	s.hub.Broadcast(string(dispatch.NotifyFullRoutesUpdate), snapshot)
}

func (s *Server) advanceTime(c *gin.Context) {
	minutes := 1
	if raw := c.Query("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "minutes must be an integer"})
			return
		}
		minutes = parsed
	}

	s.stateMu.Lock()
	if s.system == nil {
		s.stateMu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"detail": "system has not been initialized"})
		return
	}
	if minutes <= 0 {
		now := s.system.SimulationTime
		s.stateMu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"message":          "time not advanced; minutes must be positive",
			"new_time":         now.Format(time.RFC3339),
			"events_processed": 0,
		})
		return
	}
	drainedBefore := s.system.EventsDrained
	newTime, notifs := s.system.AdvanceTime(minutes)
	drained := s.system.EventsDrained - drainedBefore
	s.stateMu.Unlock()

	for _, n := range notifs {
		s.hub.Broadcast(string(n.Type), n.Data)
	}
	s.runRoutingPass()

	c.JSON(http.StatusOK, gin.H{
		"message":          fmt.Sprintf("system time advanced by %d minutes", minutes),
		"new_time":         newTime.Format(time.RFC3339),
		"events_processed": drained,
	})
}

func (s *Server) monitor(c *gin.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.system == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "system has not been initialized"})
		return
	}
	m := *s.system.Monitor
	c.JSON(http.StatusOK, gin.H{
		"created":              m.DeliveriesCreated,
		"completed":            m.DeliveriesCompleted,
		"late":                 m.DeliveriesLate,
		"penalty":              m.PenaltyIncurred,
		"route_time_minutes":   m.RouteTimeMinutes,
		"avg_penalty_delivery": m.AveragePenaltyPerDelivery(),
		"active":               s.system.ActiveCount(),
	})
}

func (s *Server) websocketEndpoint(c *gin.Context) {
	clientID := c.Param("client_id")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade failed for %q: %v", clientID, err)
		return
	}
	s.hub.Register(clientID, conn)
	go func() {
		defer s.hub.Unregister(clientID)
		for {
			// Drain client frames to keep the connection alive; the channel
			// is server-push only.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// started must be called with initMu held.
func (s *Server) started() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.system != nil
}
