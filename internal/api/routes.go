package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/supernova-labs/supernova/internal/chain"
	"github.com/supernova-labs/supernova/internal/db"
	"github.com/supernova-labs/supernova/internal/mempool"
	"github.com/supernova-labs/supernova/internal/p2p"
	"github.com/supernova-labs/supernova/internal/recovery"
	"github.com/supernova-labs/supernova/internal/swap"
	"github.com/supernova-labs/supernova/pkg/models"
)

// APIHandler wires the node's public HTTP surface to the chain validator,
// persistent store, recovery manager, mempool, and P2P admission core.
type APIHandler struct {
	dbStore   *db.PostgresStore
	validator *chain.Validator
	recovery  *recovery.Manager
	mempool   *mempool.Manager
	admitter  *p2p.Admitter
	peers     *p2p.PeerTable
	p2pLimit  *p2p.RateLimiter
}

// SetupRouter constructs the node's gin engine: health and CORS, the
// WebSocket event stream, the mempool/P2P introspection surface, and the
// atomic swap RPC surface.
func SetupRouter(dbStore *db.PostgresStore, validator *chain.Validator, recoveryMgr *recovery.Manager, wsHub *Hub, swapHandler *swap.Handler, mempoolMgr *mempool.Manager, admitter *p2p.Admitter, peers *p2p.PeerTable, p2pLimiter *p2p.RateLimiter) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	// Production: ALLOWED_ORIGINS=https://example.org
	// Development: leave empty for *.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:   dbStore,
		validator: validator,
		recovery:  recoveryMgr,
		mempool:   mempoolMgr,
		admitter:  admitter,
		peers:     peers,
		p2pLimit:  p2pLimiter,
	}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.GET("/chain/tip", handler.handleChainTip)
		protected.GET("/recovery/metrics", handler.handleRecoveryMetrics)
		protected.GET("/mempool/stats", handler.handleMempoolStats)
		protected.GET("/p2p/peers", handler.handlePeerList)
		protected.POST("/p2p/admission-check", handler.handleAdmissionCheck)
	}

	if swapHandler != nil {
		swapHandler.RegisterRoutes(r)
	}

	return r
}

// handleHealth returns node status and subsystem availability for service
// discovery and load balancer probes.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"dbConnected": h.dbStore != nil,
	})
}

// handleChainTip reports the current validated chain height.
func (h *APIHandler) handleChainTip(c *gin.Context) {
	if h.validator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chain validator not initialized"})
		return
	}
	height, ok := h.validator.TipHeight()
	c.JSON(http.StatusOK, gin.H{"height": height, "hasGenesis": ok})
}

// handleRecoveryMetrics exposes the recovery supervisor's rolling metrics.
func (h *APIHandler) handleRecoveryMetrics(c *gin.Context) {
	if h.recovery == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recovery manager not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.recovery.Metrics().Snapshot())
}

// handleMempoolStats reports pool occupancy: transaction/orphan counts,
// memory usage, and priority queue depth.
func (h *APIHandler) handleMempoolStats(c *gin.Context) {
	if h.mempool == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mempool not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.mempool.Stats())
}

// handlePeerList returns the node's known peer set, as tracked by the
// eclipse-prevention peer table.
func (h *APIHandler) handlePeerList(c *gin.Context) {
	if h.peers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "peer table not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"peers": h.peers.All()})
}

// admissionCheckRequest is the candidate peer a caller wants evaluated
// against the current diversity and ban rules before connecting.
type admissionCheckRequest struct {
	PeerID    string `json:"peerId" binding:"required"`
	IP        string `json:"ip"`
	Subnet    string `json:"subnet"`
	ASN       uint32 `json:"asn"`
	Region    string `json:"region"`
	Direction int    `json:"direction"`
	IsAnchor  bool   `json:"isAnchor"`
}

// handleAdmissionCheck runs a candidate peer through the eclipse-prevention
// admitter and, if accepted, registers it in the peer table. Throttled per
// caller IP by the P2P rate limiter so the check itself can't be used to
// probe diversity state.
func (h *APIHandler) handleAdmissionCheck(c *gin.Context) {
	if h.admitter == nil || h.peers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "P2P admission core not initialized"})
		return
	}
	if h.p2pLimit != nil && !h.p2pLimit.Allow(c.Request.Context(), p2p.CompositeKey(c.ClientIP(), "admission-check")) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	var req admissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate := models.PeerRecord{
		PeerID:    req.PeerID,
		IP:        req.IP,
		Subnet:    req.Subnet,
		ASN:       req.ASN,
		Region:    req.Region,
		Direction: models.Direction(req.Direction),
		IsAnchor:  req.IsAnchor,
	}

	if err := h.admitter.Admit(h.peers.All(), candidate); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"admitted": false, "reason": err.Error()})
		return
	}

	registered := h.peers.Register(candidate)
	c.JSON(http.StatusOK, gin.H{"admitted": true, "peer": registered})
}
