package swap

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/supernova-labs/supernova/pkg/models"
)

// InitiateSwapParams is the request body for starting a new swap.
type InitiateSwapParams struct {
	BitcoinAmount       uint64 `json:"bitcoinAmount"`
	NovaAmount          uint64 `json:"novaAmount"`
	BitcoinCounterparty string `json:"bitcoinCounterparty"`
	NovaCounterparty    string `json:"novaCounterparty"`
	TimeoutMinutes      uint32 `json:"timeoutMinutes"`
	Memo                string `json:"memo,omitempty"`
}

// SwapFilter narrows the result set of ListSwaps.
type SwapFilter struct {
	State        *models.SwapState `json:"state,omitempty"`
	MinAmountBTC *uint64           `json:"minAmountBtc,omitempty"`
	MaxAmountBTC *uint64           `json:"maxAmountBtc,omitempty"`
	Counterparty string            `json:"counterparty,omitempty"`
	Limit        int               `json:"limit,omitempty"`
}

// TransactionID identifies a transaction on one of the two chains.
type TransactionID struct {
	Txid  string `json:"txid"`
	Chain string `json:"chain"`
}

// SwapStatus is the externally-visible view of an in-flight swap.
type SwapStatus struct {
	SwapID         string      `json:"swapId"`
	State          string      `json:"state"`
	BitcoinAmount  uint64      `json:"bitcoinAmount"`
	NovaAmount     uint64      `json:"novaAmount"`
	CreatedAt      int64       `json:"createdAt"`
	UpdatedAt      int64       `json:"updatedAt"`
	CanClaim       bool        `json:"canClaim"`
	CanRefund      bool        `json:"canRefund"`
	TimeoutAt      int64       `json:"timeoutAt"`
	BitcoinAddress string      `json:"bitcoinHtlcAddress"`
	NovaHTLCID     string      `json:"novaHtlcId"`
	Events         []SwapEvent `json:"events"`
}

// FeeEstimate quotes the expected cost of a swap before it is initiated.
type FeeEstimate struct {
	BitcoinNetworkFee uint64  `json:"bitcoinNetworkFee"`
	NovaNetworkFee    uint64  `json:"novaNetworkFee"`
	ServiceFee        *uint64 `json:"serviceFee,omitempty"`
	TotalFeeBTC       uint64  `json:"totalFeeBtc"`
	TotalFeeNova      uint64  `json:"totalFeeNova"`
}

// Manager owns the set of swap sessions for this node and exposes them
// over both a Go-level API and an HTTP/gin surface.
type Manager struct {
	mu       sync.Mutex
	sessions map[[32]byte]*models.SwapSession
	monitor  *CrossChainMonitor
	metrics  PrivacyMetrics

	onStateChange func(swapID [32]byte, state models.SwapState)
}

// NewManager constructs a swap manager backed by the given monitor.
func NewManager(monitor *CrossChainMonitor) *Manager {
	return &Manager{
		sessions: make(map[[32]byte]*models.SwapSession),
		monitor:  monitor,
	}
}

// SetStateChangeListener registers a callback invoked whenever a swap
// session transitions to a new top-level state. Used to publish swap
// lifecycle events to subscribers; nil disables it.
func (m *Manager) SetStateChangeListener(fn func(swapID [32]byte, state models.SwapState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

func (m *Manager) notifyStateChange(swapID [32]byte, state models.SwapState) {
	if m.onStateChange != nil {
		m.onStateChange(swapID, state)
	}
}

// ErrSwapNotFound is returned when an operation references an unknown
// swap ID.
var ErrSwapNotFound = fmt.Errorf("swap not found")

// InitiateSwap creates a new session in the Initializing state and begins
// monitoring it.
func (m *Manager) InitiateSwap(params InitiateSwapParams, now time.Time) (*models.SwapSession, error) {
	var swapID [32]byte
	if _, err := rand.Read(swapID[:]); err != nil {
		return nil, fmt.Errorf("generating swap id: %w", err)
	}

	session := &models.SwapSession{
		Setup: models.SwapSetup{
			SwapID:         swapID,
			BitcoinAmount:  params.BitcoinAmount,
			NovaAmount:     params.NovaAmount,
			TimeoutMinutes: params.TimeoutMinutes,
		},
		NovaHTLC: models.SupernovaHTLC{
			Amount: params.NovaAmount,
			TimeLock: models.TimeLock{
				AbsoluteTimeout: now.Add(time.Duration(params.TimeoutMinutes) * time.Minute).Unix(),
			},
			State: models.SwapInitializing,
		},
		State:     models.SwapInitializing,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}

	m.mu.Lock()
	m.sessions[swapID] = session
	m.mu.Unlock()

	if m.monitor != nil {
		m.monitor.AddSwap(session)
	}
	m.notifyStateChange(swapID, session.State)
	return session, nil
}

func (m *Manager) get(swapID [32]byte) (*models.SwapSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[swapID]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return session, nil
}

// GetSwapStatus builds the external status view for a swap.
func (m *Manager) GetSwapStatus(swapID [32]byte, now time.Time) (SwapStatus, error) {
	session, err := m.get(swapID)
	if err != nil {
		return SwapStatus{}, err
	}
	var events []SwapEvent
	if m.monitor != nil {
		events = m.monitor.Events(swapID)
	}
	return SwapStatus{
		SwapID:         fmt.Sprintf("%x", swapID),
		State:          session.State.String(),
		BitcoinAmount:  session.Setup.BitcoinAmount,
		NovaAmount:     session.Setup.NovaAmount,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
		CanClaim:       session.NovaHTLC.State == models.SwapActive && !session.NovaHTLC.IsExpired(now),
		CanRefund:      refundableStates[session.NovaHTLC.State] && session.NovaHTLC.IsExpired(now),
		TimeoutAt:      session.NovaHTLC.TimeLock.AbsoluteTimeout,
		BitcoinAddress: session.BTCHTLC.Address,
		NovaHTLCID:     fmt.Sprintf("%x", session.NovaHTLC.HTLCID),
		Events:         events,
	}, nil
}

// ClaimSwap reveals secret against the swap's Nova-side HTLC.
func (m *Manager) ClaimSwap(swapID [32]byte, secret [32]byte, now time.Time) (TransactionID, error) {
	session, err := m.get(swapID)
	if err != nil {
		return TransactionID{}, err
	}
	if err := Claim(&session.NovaHTLC, secret, now); err != nil {
		return TransactionID{}, err
	}
	session.State = models.SwapClaimed
	session.UpdatedAt = now.Unix()
	m.notifyStateChange(swapID, session.State)
	return TransactionID{Txid: fmt.Sprintf("%x", sha256.Sum256(append(swapID[:], secret[:]...))), Chain: "supernova"}, nil
}

// RefundSwap refunds an expired, refundable swap.
func (m *Manager) RefundSwap(swapID [32]byte, now time.Time) (TransactionID, error) {
	session, err := m.get(swapID)
	if err != nil {
		return TransactionID{}, err
	}
	if err := Refund(&session.NovaHTLC, now); err != nil {
		return TransactionID{}, err
	}
	session.State = models.SwapRefunded
	session.UpdatedAt = now.Unix()
	m.notifyStateChange(swapID, session.State)
	return TransactionID{Txid: fmt.Sprintf("%x", sha256.Sum256(swapID[:])), Chain: "supernova"}, nil
}

// ListSwaps returns sessions matching filter, most recently created first.
func (m *Manager) ListSwaps(filter SwapFilter) []*models.SwapSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.SwapSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		if filter.State != nil && session.State != *filter.State {
			continue
		}
		if filter.MinAmountBTC != nil && session.Setup.BitcoinAmount < *filter.MinAmountBTC {
			continue
		}
		if filter.MaxAmountBTC != nil && session.Setup.BitcoinAmount > *filter.MaxAmountBTC {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// CancelSwap aborts a swap that has not yet funded on either chain.
func (m *Manager) CancelSwap(swapID [32]byte) (bool, error) {
	session, err := m.get(swapID)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.State != models.SwapInitializing {
		return false, nil
	}
	session.State = models.SwapFailed
	delete(m.sessions, swapID)
	m.notifyStateChange(swapID, session.State)
	return true, nil
}

// EstimateFees returns a static fee quote for a prospective swap: fixed
// network fees of 1000 on the Bitcoin side and 500 on the Nova side. The
// quote does not depend on params or on live fee rates.
func (m *Manager) EstimateFees(params InitiateSwapParams) FeeEstimate {
	return FeeEstimate{
		BitcoinNetworkFee: 1000,
		NovaNetworkFee:    500,
		TotalFeeBTC:       1000,
		TotalFeeNova:      500,
	}
}

// Handler adapts Manager to gin routes, following the node's existing
// REST conventions.
type Handler struct {
	manager *Manager
}

// NewHandler wraps manager for HTTP use.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts the swap endpoints under r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	grp := r.Group("/api/v1/swap")
	grp.POST("/initiate", h.handleInitiate)
	grp.GET("/:id", h.handleStatus)
	grp.POST("/:id/claim", h.handleClaim)
	grp.POST("/:id/refund", h.handleRefund)
	grp.GET("", h.handleList)
	grp.POST("/:id/cancel", h.handleCancel)
	grp.POST("/estimate-fees", h.handleEstimateFees)
}

func parseSwapID(s string) ([32]byte, error) {
	var id [32]byte
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != 32 {
		return id, fmt.Errorf("invalid swap id")
	}
	copy(id[:], decoded)
	return id, nil
}

func (h *Handler) handleInitiate(c *gin.Context) {
	var params InitiateSwapParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.manager.InitiateSwap(params, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"swapId": fmt.Sprintf("%x", session.Setup.SwapID)})
}

func (h *Handler) handleStatus(c *gin.Context) {
	id, err := parseSwapID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := h.manager.GetSwapStatus(id, time.Now())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) handleClaim(c *gin.Context) {
	id, err := parseSwapID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected {secret}"})
		return
	}
	secretID, err := parseSwapID(req.Secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid secret"})
		return
	}
	txid, err := h.manager.ClaimSwap(id, secretID, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, txid)
}

func (h *Handler) handleRefund(c *gin.Context) {
	id, err := parseSwapID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txid, err := h.manager.RefundSwap(id, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, txid)
}

func (h *Handler) handleList(c *gin.Context) {
	sessions := h.manager.ListSwaps(SwapFilter{})
	c.JSON(http.StatusOK, gin.H{"swaps": sessions})
}

func (h *Handler) handleCancel(c *gin.Context) {
	id, err := parseSwapID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := h.manager.CancelSwap(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": ok})
}

func (h *Handler) handleEstimateFees(c *gin.Context) {
	var params InitiateSwapParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, h.manager.EstimateFees(params))
}
