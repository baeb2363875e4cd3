// Command ecoverify runs the durable cyclic multi-agent orchestrator:
// it wires the identity store, checkpoint store, and graph runtime and
// exposes a single teacher-style /health endpoint. The Driver API
// (pkg/driver) is a library surface for an external façade process —
// no HTTP handlers for Start/Stream/Resume/Status/Traces live here.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ecoverify-prime/ecoverify/pkg/adapters/fhir"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/llm"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/settlement"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/telemetry"
	"github.com/ecoverify-prime/ecoverify/pkg/adapters/ticket"
	"github.com/ecoverify-prime/ecoverify/pkg/config"
	"github.com/ecoverify-prime/ecoverify/pkg/database"
	"github.com/ecoverify-prime/ecoverify/pkg/discovery"
	"github.com/ecoverify-prime/ecoverify/pkg/driver"
	"github.com/ecoverify-prime/ecoverify/pkg/graphrt"
	"github.com/ecoverify-prime/ecoverify/pkg/identity"
	"github.com/ecoverify-prime/ecoverify/pkg/steps"
	"github.com/ecoverify-prime/ecoverify/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// signingAgents are the four role ids that own an Ed25519 keypair —
// the Finalizer never signs, per spec.md §3.
var signingAgents = []string{"detector", "jurist", "architect", "governor"}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()

	idStore, err := identity.NewStore(cfg.IdentityKeyDir)
	if err != nil {
		log.Fatalf("Failed to open identity key store: %v", err)
	}
	if err := idStore.EnsureAll(signingAgents); err != nil {
		log.Fatalf("Failed to provision agent keys: %v", err)
	}
	log.Println("✓ Identity keys provisioned for all signing agents")

	var dbClient *database.Client
	var checkpointStore graphrt.Store
	switch cfg.Runtime.Backend {
	case "postgres":
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			log.Fatalf("Failed to load database config: %v", err)
		}
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		checkpointStore = graphrt.NewPostgresStore(dbClient.DB())
		log.Println("✓ Connected to PostgreSQL checkpoint store")
	default:
		checkpointStore = graphrt.NewMemoryStore()
		log.Println("✓ Using in-memory checkpoint store")
	}
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(); err != nil {
				log.Printf("Error closing database client: %v", err)
			}
		}()
	}

	// Telemetry, Tickets, and Settlement are load-bearing: the steps
	// that use them never nil-check, so they are always constructed.
	// FHIR and the LLM-backed Enricher are the two adapters the steps
	// already nil-guard (spec.md §7 AdapterFailure), so those alone are
	// gated behind their config toggles.
	deps := steps.Deps{
		Identity:   idStore,
		Telemetry:  telemetry.NewSimulator(),
		Tickets:    ticket.NewDesk(),
		Settlement: settlement.NewLedger("devnet"),
	}.WithBuildingID(cfg.BuildingID)

	// llm.New returns the disabled model whatever the LLM settings (no
	// provider is wired), so it is always constructed; the Detector's best-effort anomaly-
	// message enrichment (spec.md §9 "LLM enrichment") is wired
	// unconditionally — it falls back to the deterministic message on
	// its own whenever the model is disabled or errors.
	model := llm.New(llm.Config{
		Enabled: cfg.LLMEnabled(),
		APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
		Model:   cfg.LLM.Model,
	})
	deps.AnomalyModel = model

	if cfg.AdapterEnabled("fhir") {
		deps.FHIR = fhir.NewClient(getEnv("FHIR_BASE_URL", ""))
	}
	if cfg.AdapterEnabled("edutech") {
		deps.Enricher = llm.FrictionEnricher{Model: model}
	}

	engine := graphrt.NewEngine(checkpointStore, deps,
		graphrt.WithRecursionCap(cfg.Runtime.RecursionCap),
		graphrt.WithStepTimeout(cfg.Runtime.StepTimeout),
	)
	drv := driver.New(engine, idStore)
	_ = drv // the Driver API is a library surface for an external façade; this process only health-checks it

	doc := discovery.Build(idStore)
	log.Printf("✓ Graph runtime ready (%d signing agents, recursion cap %d)", len(doc.Agents), cfg.Runtime.RecursionCap)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		body := gin.H{
			"status":  "healthy",
			"service": version.AppName,
			"configuration": gin.H{
				"building_id":        stats.BuildingID,
				"checkpoint_backend": stats.CheckpointBackend,
				"adapters_enabled":   stats.AdaptersEnabled,
				"llm_enabled":        stats.LLMEnabled,
			},
			"runtime": gin.H{
				"dispatch_count": engine.DispatchCount(),
				"signing_agents": len(doc.Agents),
			},
		}

		if dbClient != nil {
			dbHealth, err := database.Health(reqCtx, dbClient.DB())
			if err != nil {
				body["status"] = "unhealthy"
				body["database"] = dbHealth
				body["error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["database"] = dbHealth
		}

		c.JSON(http.StatusOK, body)
	})

	slog.Info("ecoverify orchestrator ready", "building_id", cfg.BuildingID, "backend", cfg.Runtime.Backend)
	log.Printf("HTTP server listening on :%s", httpPort)
	log.Printf("Health check available at: http://localhost:%s/health", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
