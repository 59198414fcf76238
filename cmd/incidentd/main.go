// Command incidentd is the thin HTTP intake binary: it wires together the
// Incident Store, Notification Sink, and every engine in pkg/, then
// exposes a minimal gin router (/alerts, /health) in front of the
// Incident Processor. The full HTTP/GraphQL surface is out of scope (spec
// §1) — this is intentionally the same small-router-in-front-of-services
// shape as the teacher's cmd/tarsy/main.go, not a complete API.
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

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/config"
	"github.com/fluxguard/incidentcore/pkg/correlation"
	"github.com/fluxguard/incidentcore/pkg/dedup"
	"github.com/fluxguard/incidentcore/pkg/enrichment"
	"github.com/fluxguard/incidentcore/pkg/escalation"
	"github.com/fluxguard/incidentcore/pkg/eventbus"
	"github.com/fluxguard/incidentcore/pkg/locator"
	"github.com/fluxguard/incidentcore/pkg/model"
	"github.com/fluxguard/incidentcore/pkg/notifysink"
	"github.com/fluxguard/incidentcore/pkg/obslog"
	"github.com/fluxguard/incidentcore/pkg/playbook"
	"github.com/fluxguard/incidentcore/pkg/processor"
	"github.com/fluxguard/incidentcore/pkg/routing"
	"github.com/fluxguard/incidentcore/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// storeCandidateSource adapts store.Store's paginated ListIncidents to the
// Correlation Engine's single-page CandidateSource contract. Production
// deployments with large incident volumes should replace this with a
// store-native "active incidents" query; the in-memory reference store
// has no such cost concern.
type storeCandidateSource struct {
	st store.Store
}

func (s storeCandidateSource) ListIncidents(ctx context.Context, filter store.IncidentFilter) ([]*model.Incident, error) {
	return s.st.ListIncidents(ctx, filter, 0, 10000)
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	obslog.Init(getEnv("APP_ENV", "development"))

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	realClock := clock.Real()

	st := store.NewMemory()

	sinkPool := notifysink.NewPool(notifysink.Config{
		QueueSize:    cfg.Notifications.QueueSize,
		WorkerCount:  cfg.Notifications.WorkerThreads,
		MaxRetries:   cfg.Notifications.MaxRetries,
		RetryBackoff: cfg.RetryBackoff(),
	}, realClock, nil)
	sinkPool.Start(ctx)
	defer sinkPool.Stop()

	bus := &eventbus.Bus{
		OnIncidentCreated: func(inc *model.Incident) {
			slog.Info("incident created", obslog.FieldIncidentID, inc.ID, obslog.FieldSource, inc.Source)
		},
	}

	dedupEngine := dedup.New(st, realClock, dedup.Config{WindowSecs: cfg.Dedup.WindowSecs})

	correlationEngine := correlation.New(storeCandidateSource{st: st}, realClock, correlation.Config{
		MinCorrelationScore:     cfg.Correlation.MinCorrelationScore,
		TemporalWindowSecs:      cfg.Correlation.TemporalWindowSecs,
		PatternSimilarityThresh: cfg.Correlation.PatternSimilarityThresh,
		EnableTemporal:          cfg.Correlation.EnableTemporal,
		EnablePattern:           cfg.Correlation.EnablePattern,
		EnableSource:            cfg.Correlation.EnableSource,
		EnableFingerprint:       cfg.Correlation.EnableFingerprint,
		EnableTopology:          cfg.Correlation.EnableTopology,
		AutoMergeGroups:         cfg.Correlation.AutoMergeGroups,
	})

	escalationEngine := escalation.New(sinkPool, realClock, escalation.Config{CheckIntervalSecs: cfg.Escalation.CheckIntervalSecs})
	escalationEngine.StartTicker(ctx)
	defer escalationEngine.StopTicker()

	routingEngine := routing.New()

	playbookRegistry := playbook.NewRegistry(sinkPool, st, realClock, http.DefaultClient)
	playbookEngine := playbook.New(playbookRegistry, realClock)

	enrichmentPipeline := enrichment.New(enrichment.Config{
		TimeoutSecs:      cfg.Enrichment.TimeoutSecs,
		CacheTTLSecs:     cfg.Enrichment.CacheTTLSecs,
		AsyncEnrichment:  cfg.Enrichment.AsyncEnrichment,
		MaxConcurrent:    cfg.Enrichment.MaxConcurrent,
		EnableHistorical: cfg.Enrichment.EnableHistorical,
		EnableService:    cfg.Enrichment.EnableService,
		EnableTeam:       cfg.Enrichment.EnableTeam,
		EnableMetrics:    cfg.Enrichment.EnableMetrics,
		EnableLogs:       cfg.Enrichment.EnableLogs,
	}, realClock)
	enrichmentPipeline.Register(enrichment.NewHistoricalEnricher(st, 0.5))

	loc := locator.New().
		WithDedup(dedupEngine).
		WithEnrichment(enrichmentPipeline).
		WithRouting(routingEngine).
		WithEscalation(escalationEngine).
		WithPlaybooks(locator.AdaptPlaybooks(playbookEngine)).
		WithCorrelation(locator.AdaptCorrelation(correlationEngine))

	proc := processor.New(st, dedupEngine, sinkPool, bus, realClock, loc)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/alerts", func(c *gin.Context) {
		var payload model.Alert
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if payload.ID == "" {
			payload.ID = model.NewAlertID()
		}
		if payload.Timestamp.IsZero() {
			payload.Timestamp = realClock.Now()
		}

		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		ack, err := proc.ProcessAlert(reqCtx, &payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"alert_id":    ack.AlertID,
			"incident_id": ack.IncidentID,
			"status":      ack.Status,
		})
	})

	addr := cfg.Server.Addr
	slog.Info("incidentd listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
