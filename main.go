package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"paper-triplets/config"
	"paper-triplets/logging"
	"paper-triplets/models"
	"paper-triplets/providers/bioc"
	"paper-triplets/providers/publications"
	"paper-triplets/providers/pubmed"
	"paper-triplets/services"
	"paper-triplets/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	zl, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer zl.Sync()

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	zl.Info("Successfully connected to database.")

	repo := storage.NewRepository(db, zl)
	zl.Info("Running database auto-migration...")
	if err := repo.Migrate(); err != nil {
		zl.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	var resolver publications.Resolver
	if cfg.ResolvePMIDs {
		resolver = pubmed.NewConverter(cfg, zl)
	}
	idSource := publications.NewSource(cfg, zl, resolver)
	fetcher := bioc.NewFetcher(cfg, zl)

	// Setup Services
	metrics := services.NewPipelineMetrics(prometheus.DefaultRegisterer)
	pipeline := services.NewPipelineService(cfg, zl, fetcher, idSource, repo, metrics)
	runner := newPipelineRunner(pipeline, zl)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup Routes
	setupTextRoutes(router, zl)
	setupHierarchyRoutes(router, zl)
	setupTripletRoutes(router, zl)
	setupPipelineRoutes(router, runner)
	setupDocumentRoutes(router, repo, zl)

	// Setup Cron
	if cfg.CronEnabled {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
			zl.Info("Running scheduled pipeline job...")
			if !runner.start(nil) {
				zl.Warn("Pipeline already running, scheduled job skipped")
			}
		})
		if err != nil {
			zl.Fatal("Invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	zl.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		zl.Fatal("Failed to run server", zap.Error(err))
	}
}

// pipelineRunner startet höchstens einen Pipeline-Lauf gleichzeitig im Hintergrund.
type pipelineRunner struct {
	pipeline *services.PipelineService
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	last    *runSummary
}

type runSummary struct {
	RunID      string                     `json:"run_id"`
	Processed  int                        `json:"processed"`
	Skipped    []services.SkippedDocument `json:"skipped"`
	Triplets   int                        `json:"triplets"`
	SinkErrors int                        `json:"sink_errors"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Error      string                     `json:"error,omitempty"`
}

func newPipelineRunner(p *services.PipelineService, log *zap.Logger) *pipelineRunner {
	return &pipelineRunner{pipeline: p, log: log}
}

// start führt die Pipeline asynchron aus; ohne ids werden sie aus der Publikationstabelle geladen.
func (r *pipelineRunner) start(ids []string) bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return false
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		var (
			result *services.RunResult
			err    error
		)
		if len(ids) > 0 {
			result, err = r.pipeline.Run(context.Background(), ids)
		} else {
			result, err = r.pipeline.RunFromSource(context.Background())
		}
		summary := summarize(result, err)
		if err != nil {
			r.log.Error("Async pipeline run failed", zap.Error(err))
		} else {
			r.log.Info("Async pipeline run completed", zap.String("run_id", summary.RunID), zap.Int("processed", summary.Processed))
		}

		r.mu.Lock()
		r.running = false
		r.last = summary
		r.mu.Unlock()
	}()
	return true
}

func (r *pipelineRunner) status() (bool, *runSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.last
}

func summarize(result *services.RunResult, err error) *runSummary {
	s := &runSummary{}
	if err != nil {
		s.Error = err.Error()
	}
	if result == nil {
		return s
	}
	s.RunID = result.RunID
	s.Processed = len(result.Documents)
	s.Skipped = result.Skipped
	s.Triplets = result.TripletCount()
	s.SinkErrors = result.SinkErrors
	s.StartedAt = result.StartedAt
	s.FinishedAt = result.FinishedAt
	return s
}

func setupTextRoutes(router *gin.Engine, log *zap.Logger) {
	normalizer := services.NewTextNormalizer(log)
	rg := router.Group("/text")

	rg.POST("/normalize", func(c *gin.Context) {
		var req struct {
			Text *string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": normalizer.Normalize(*req.Text)})
	})
}

func setupHierarchyRoutes(router *gin.Engine, log *zap.Logger) {
	normalizer := services.NewTextNormalizer(log)
	rg := router.Group("/hierarchy")

	// POST - BioC-JSON im Body, Abschnittsbaum als Antwort
	rg.POST("/build", func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}
		tree, err := services.BuildHierarchyFromBioC(raw, normalizer.Normalize)
		if err != nil {
			if errors.Is(err, services.ErrMalformedDocument) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			log.Error("Hierarchy build failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hierarchy build failed"})
			return
		}
		if c.Query("format") == "sections" {
			c.JSON(http.StatusOK, gin.H{"sections": tree.Sections})
			return
		}
		c.JSON(http.StatusOK, tree)
	})
}

func setupTripletRoutes(router *gin.Engine, log *zap.Logger) {
	normalizer := services.NewTextNormalizer(log)
	rg := router.Group("/triplets")

	// POST - beliebiges JSON (oder mit ?format=bioc einen BioC-Export) zu Triplets
	rg.POST("/flatten", func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}

		var node models.Node
		if c.Query("format") == "bioc" {
			tree, err := services.BuildHierarchyFromBioC(raw, normalizer.Normalize)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			node = tree.Node()
		} else {
			node, err = models.ParseNode(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body: " + err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, services.FlattenAll(node))
	})
}

func setupPipelineRoutes(router *gin.Engine, runner *pipelineRunner) {
	rg := router.Group("/pipeline")

	rg.POST("/run", func(c *gin.Context) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		if !runner.start(req.IDs) {
			c.JSON(http.StatusConflict, gin.H{"error": "pipeline run already in progress"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run triggered.", "ids": len(req.IDs)})
	})

	rg.GET("/status", func(c *gin.Context) {
		running, last := runner.status()
		c.JSON(http.StatusOK, gin.H{"running": running, "last_run": last})
	})
}

func setupDocumentRoutes(router *gin.Engine, repo *storage.Repository, log *zap.Logger) {
	rg := router.Group("/documents")

	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		docs, err := repo.ListDocuments(c.Request.Context(), limit)
		if err != nil {
			log.Error("Database query for documents failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/:pmcid", func(c *gin.Context) {
		pmcid := c.Param("pmcid")
		doc, err := repo.GetDocument(c.Request.Context(), pmcid)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		if err != nil {
			log.Error("DB error loading document", zap.String("pmcid", pmcid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	rg.GET("/:pmcid/triplets", func(c *gin.Context) {
		pmcid := c.Param("pmcid")
		triplets, err := repo.GetTriplets(c.Request.Context(), pmcid)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		if err != nil {
			log.Error("DB error loading triplets", zap.String("pmcid", pmcid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, triplets)
	})
}
