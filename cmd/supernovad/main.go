package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/redis/go-redis/v9"

	"github.com/supernova-labs/supernova/internal/api"
	"github.com/supernova-labs/supernova/internal/bitcoin"
	"github.com/supernova-labs/supernova/internal/chain"
	"github.com/supernova-labs/supernova/internal/config"
	"github.com/supernova-labs/supernova/internal/db"
	"github.com/supernova-labs/supernova/internal/mempool"
	"github.com/supernova-labs/supernova/internal/p2p"
	"github.com/supernova-labs/supernova/internal/recovery"
	"github.com/supernova-labs/supernova/internal/storage"
	"github.com/supernova-labs/supernova/internal/swap"
	"github.com/supernova-labs/supernova/pkg/models"
)

func main() {
	log.Println("Starting Supernova node...")

	dbURL := config.RequireEnv("DATABASE_URL")
	dbConn, err := db.Connect(dbURL)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	btcHost := config.StringOr("BTC_RPC_HOST", "localhost:8332")
	btcUser := config.StringOr("BTC_RPC_USER", "")
	btcPass := config.StringOr("BTC_RPC_PASS", "")
	var btcClient *bitcoin.Client
	if btcUser != "" && btcPass != "" {
		btcClient, err = bitcoin.NewClient(bitcoin.Config{Host: btcHost, User: btcUser, Pass: btcPass})
		if err != nil {
			log.Printf("Warning: failed to connect to Bitcoin RPC: %v", err)
		} else {
			defer btcClient.Shutdown()
		}
	} else {
		log.Println("BTC_RPC_USER/BTC_RPC_PASS not set — running without a Bitcoin-side swap monitor")
	}

	// ── Chain validation ──────────────────────────────────────────
	twDetector := chain.NewTimeWarpDetector(chain.DefaultTimeWarpConfig())
	checkpointMgr := chain.NewCheckpointManager()
	wsMgr := chain.NewWeakSubjectivityManager(chain.DefaultWeakSubjectivityConfig())
	utxos := chain.NewUTXOSet()
	validator := chain.NewValidator(twDetector, checkpointMgr, wsMgr, utxos)

	// ── Mempool ───────────────────────────────────────────────────
	mempoolMgr := mempool.NewManager(mempool.DefaultConfig())

	// ── P2P admission ─────────────────────────────────────────────
	admitter := p2p.NewAdmitter(p2p.DefaultDiversityConfig())
	peerTable := p2p.NewPeerTable()

	var redisClient *redis.Client
	if redisURL := config.StringOr("REDIS_URL", ""); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL, rate-limit coordination will run purely local: %v", err)
		} else {
			redisClient = redis.NewClient(opt)
		}
	}
	apiTier := p2p.RateLimitTier{Name: "api", RequestsPerWindow: 120, WindowSeconds: 60, BurstMultiplier: 1.5}
	p2pLimiter := p2p.NewRateLimiter(apiTier, redisClient, 30*time.Second)

	// ── Recovery supervisor ───────────────────────────────────────
	recoveryMgr := recovery.NewManager()

	// ── Checkpoint/integrity storage ──────────────────────────────
	dataDir := config.StringOr("DATA_DIR", "./data")
	dataSource, err := storage.NewDirectoryDataSource(dataDir)
	if err != nil {
		log.Fatalf("failed to initialize data directory %s: %v", dataDir, err)
	}
	chainState := storage.NewValidatorChainState(validator, utxos)
	checkpointManager := storage.NewCheckpointManager(dataSource, chainState, storage.DefaultCheckpointConfig())
	if err := checkpointManager.Start(); err != nil {
		log.Printf("Warning: checkpoint manager failed to start: %v", err)
	} else {
		defer checkpointManager.Stop()
	}

	// ── Atomic swap ────────────────────────────────────────────────
	// A live BitcoinChainReader/NovaChainReader pair is required for the
	// cross-chain monitor to run; without one configured, swaps can still
	// be initiated and manually claimed/refunded through the RPC surface.
	var swapMonitor *swap.CrossChainMonitor
	if btcClient != nil {
		btcReader := bitcoin.NewSwapChainReader(btcClient)
		novaReader := chain.NewSwapChainView(validator)
		swapMonitor = swap.NewCrossChainMonitor(swap.DefaultMonitorConfig(), btcReader, novaReader)
	}
	swapManager := swap.NewManager(swapMonitor)
	swapHandler := swap.NewHandler(swapManager)

	// ── WebSocket hub ──────────────────────────────────────────────
	wsHub := api.NewHub()
	go wsHub.Run()

	type wsEvent struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}
	broadcastEvent := func(eventType string, data interface{}) {
		payload, err := json.Marshal(wsEvent{Type: eventType, Data: data})
		if err != nil {
			log.Printf("Warning: failed to encode %s event: %v", eventType, err)
			return
		}
		wsHub.Broadcast(payload)
	}

	validator.SetTipListener(func(height uint64, hash chainhash.Hash) {
		broadcastEvent("chain.tip", map[string]interface{}{"height": height, "hash": hash.String()})
	})
	swapManager.SetStateChangeListener(func(swapID [32]byte, state models.SwapState) {
		broadcastEvent("swap.state", map[string]interface{}{"swapId": chainhash.Hash(swapID).String(), "state": state.String()})
	})
	admitter.SetRejectionListener(func(candidate models.PeerRecord, reason string) {
		broadcastEvent("p2p.admission_rejected", map[string]interface{}{"peerId": candidate.PeerID, "subnet": candidate.Subnet, "reason": reason})
	})

	if swapMonitor != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go swapMonitor.Run(ctx)
	}

	// ── HTTP router ──────────────────────────────────────────────
	r := api.SetupRouter(dbConn, validator, recoveryMgr, wsHub, swapHandler, mempoolMgr, admitter, peerTable, p2pLimiter)

	port := config.StringOr("PORT", "5339")
	log.Printf("Supernova node listening on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
