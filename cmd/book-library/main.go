package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"book-library/internal/database"
	"book-library/internal/filesystem"
	"book-library/internal/handlers"
	"book-library/internal/indexer"
	"book-library/internal/logging"
	"book-library/internal/media"
	"book-library/internal/memory"
	"book-library/internal/metrics"
	"book-library/internal/middleware"
	"book-library/internal/settings"
	"book-library/internal/startup"
	"book-library/internal/transcoder"
	"book-library/internal/treecache"
	"book-library/internal/workers"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

// statsSource is the part of the database the collector reads.
type statsSource interface {
	GetStats(ctx context.Context) (metrics.Stats, error)
}

type cacheSizer interface {
	CacheSize() int64
}

// statsAdapter adds the render cache size to the database totals.
type statsAdapter struct {
	db    statsSource
	cache cacheSizer
}

func (a *statsAdapter) GetStats(ctx context.Context) (metrics.Stats, error) {
	s, err := a.db.GetStats(ctx)
	if err != nil {
		return s, err
	}
	s.RenderCacheBytes = a.cache.CacheSize()
	return s, nil
}

// components are the parts stopped on shutdown, in order.
type components struct {
	cancelRuns context.CancelFunc
	indexer    *indexer.Indexer
	server     *http.Server
	metrics    *http.Server
	collector  *metrics.Collector
	monitor    *memory.Monitor
	pool       *workers.Pool
	svg        *transcoder.Transcoder
	db         *database.Database
}

func main() {
	startTime := time.Now()

	memLimits := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memLimits)

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	store, err := settings.Open(config.SettingsFile, config.LibraryDir)
	if err != nil {
		startup.LogFatal("Failed to load settings: %v", err)
	}
	current := store.Get()
	startup.LogSettingsLoaded(store.Path(), current.RootPath, current.ImageExts, current.AutoScanOnStartup)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":  current.RootPath,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(config.DatabasePath, time.Since(dbStart))

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	pool := workers.NewPool(workers.PoolConfig{
		Enabled:     current.UseThreadPool,
		MaxWorkers:  current.ThreadPoolMaxWorkers,
		IdleTimeout: current.IdleTimeout(),
		Throttle:    monitor,
	})
	svg := transcoder.New(filepath.Join(config.CacheDir, "pdf"))
	renderer := media.NewRenderer(media.RendererConfig{
		CacheDir:   config.CacheDir,
		CoverWidth: current.CoverWidth,
		Pool:       pool,
		SVG:        svg,
	})
	startup.LogRendererInit(config.RenderCacheEnabled, media.IsVipsAvailable(), transcoder.DefaultBinary)

	cache := treecache.New(db)
	idx := indexer.New(db, cache, media.VipsPDF{}, renderer, renderer, indexer.Config{
		RootPath: current.RootPath,
		DataDir:  config.DatabaseDir,
		Scanner:  indexer.ScannerConfigFrom(current),
	})

	// Pool sizing is fixed for the life of the process.
	store.OnChange(func(s settings.Settings) {
		idx.Configure(s.RootPath, indexer.ScannerConfigFrom(s))
		renderer.SetCoverWidth(s.CoverWidth)
		logging.Info("Settings updated, library root is %s", s.RootPath)
	})

	runCtx, cancelRuns := context.WithCancel(context.Background())
	startup.LogIndexerInit(current.RootPath, current.AutoScanOnStartup)
	if current.AutoScanOnStartup {
		idx.TriggerSync(runCtx)
	} else if err := cache.Build(runCtx); err != nil {
		logging.Error("Failed to build tree cache: %v", err)
	}

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&statsAdapter{db: db, cache: renderer}, collectorInterval)
		collector.Start()
	}

	h := handlers.New(db, cache, idx, renderer, store)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Scan streams stay open for the whole sync.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h.MetricsHandler())
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(done, components{
		cancelRuns: cancelRuns,
		indexer:    idx,
		server:     srv,
		metrics:    metricsSrv,
		collector:  collector,
		monitor:    monitor,
		pool:       pool,
		svg:        svg,
		db:         db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// buildHandler wraps the router in the middleware chain. Requests pass
// CORS first and reach compression last.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.CORS(middleware.ParseOrigins(config.CORSOrigins))(handler)
}

func newMetricsServer(port string, metricsHandler http.Handler) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", metricsHandler)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
