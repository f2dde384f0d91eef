package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"whaletracker/internal/client/httpx"
	"whaletracker/internal/client/polymarket/clob"
	polymarketdata "whaletracker/internal/client/polymarket/data"
	polymarketgamma "whaletracker/internal/client/polymarket/gamma"
	"whaletracker/internal/config"
	cronrunner "whaletracker/internal/cron"
	"whaletracker/internal/db"
	"whaletracker/internal/handler"
	"whaletracker/internal/lock"
	"whaletracker/internal/logger"
	"whaletracker/internal/marketdata"
	"whaletracker/internal/notify"
	"whaletracker/internal/paas"
	"whaletracker/internal/papertrade"
	"whaletracker/internal/poller"
	"whaletracker/internal/recommendation"
	"whaletracker/internal/repository"
	gormrepository "whaletracker/internal/repository/gorm"
	"whaletracker/internal/repository/memory"
	"whaletracker/internal/risk"
	"whaletracker/internal/scoring"
	"whaletracker/internal/service"
	whalesignal "whaletracker/internal/signal"

	_ "whaletracker/docs"
)

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfgPath := os.Getenv("WT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("WT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, closeStore := openStore(cfg, logger)
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paasClient := initPaaSClient(cfg.PaaS, logger)
	baseCtx := paas.WithClient(ctx, paasClient)

	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(baseCtx, service.DefaultFeatureSwitches(cfg)); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	scorer := scoring.NewScorer(cfg.Scoring.Weights)
	if sum := scorer.WeightSum(); sum < 99.999 || sum > 100.001 {
		logger.Warn("scoring weights do not sum to 100", zap.Float64("sum", sum))
	}

	transport := httpx.New(httpx.Options{
		Timeout:         cfg.Polymarket.Timeout,
		RequestsPerSec:  cfg.Polymarket.RequestsPerSec,
		MaxRetryElapsed: cfg.Polymarket.MaxRetryElapsed,
	})
	provider := &marketdata.Client{
		Gamma:      polymarketgamma.NewClient(transport, cfg.Polymarket.GammaBaseURL),
		Clob:       clob.NewClient(transport, cfg.Polymarket.ClobBaseURL),
		Data:       polymarketdata.NewClient(transport, cfg.Polymarket.DataBaseURL),
		Logger:     logger,
		TradeLimit: cfg.Polymarket.TradeLimit,
	}

	if settingsSvc.IsEnabled(baseCtx, service.FeatureTradeStream, cfg.TradeStream.Enabled) {
		tape := marketdata.NewTradeTape(cfg.TradeStream.Retention)
		provider.Tape = tape
		stream := clob.NewTradeStream(clob.TradeStreamOptions{
			URL:             cfg.TradeStream.URL,
			AssetIDProvider: marketdata.StreamAssetIDs(store, cfg.Poller.MarketLimit, logger),
			RefreshInterval: cfg.TradeStream.RefreshInterval,
			Logger:          logger,
		})
		go func() {
			if err := tape.Run(baseCtx, stream); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("trade stream stopped", zap.Error(err))
			}
		}()
	}

	var locker lock.Locker
	if cfg.Redis.Enabled {
		redisLocker := lock.NewRedisLocker(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisLocker.Close()
		locker = redisLocker
	}

	simulator := &papertrade.Simulator{
		Repo:      store,
		Logger:    logger,
		BetSize:   decimal.NewFromFloat(cfg.PaperTrading.BetSize),
		Hold:      cfg.PaperTrading.Hold,
		HighScore: cfg.Scoring.HighConfidenceScore,
	}
	tracker := &poller.Poller{
		Provider: provider,
		Repo:     store,
		Detector: &whalesignal.Detector{Repo: store, Logger: logger, Config: cfg.Detector},
		Risk:     &risk.Guard{Repo: store, Logger: logger, Config: cfg.Risk},
		Scorer:   scorer,
		Recommendations: &recommendation.Manager{
			Repo:     store,
			Logger:   logger,
			MinScore: cfg.Scoring.MinWhaleScore,
			Hold:     cfg.PaperTrading.Hold,
		},
		PaperTrades:         simulator,
		Notifier:            initNotifier(cfg, logger),
		Settings:            settingsSvc,
		Logger:              logger,
		Locker:              locker,
		LockKey:             cfg.Redis.LockKey,
		LockTTL:             cfg.Redis.LockTTL,
		Config:              cfg.Poller,
		MinScore:            cfg.Scoring.MinWhaleScore,
		HighConfidenceScore: cfg.Scoring.HighConfidenceScore,
		MaxRecommendations:  cfg.Scoring.MaxRecommendations,
		StatsDays:           cfg.PaperTrading.StatsDays,
	}

	runPoll := func(ctx context.Context) {
		if !settingsSvc.IsEnabled(ctx, service.FeaturePoller, true) {
			return
		}
		_, err := tracker.RunOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, poller.ErrCycleRunning) {
			logger.Info("poll cycle skipped, previous still running")
			return
		}
		logger.Warn("poll cycle failed", zap.Error(err))
	}

	cronRunner := cronrunner.New(logger, baseCtx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.Poll, runPoll); err != nil {
			logger.Warn("cron register poll failed", zap.Error(err))
		}
		_, err := cronRunner.Add(cfg.Cron.PerformanceDigest, func(ctx context.Context) {
			if err := tracker.SendDigest(ctx); err != nil {
				logger.Warn("performance digest failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register performance digest failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.DailyMetrics, func(ctx context.Context) {
			if err := simulator.RollupPreviousDay(ctx); err != nil {
				logger.Warn("daily metrics rollup failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register daily metrics failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if cfg.Poller.RunOnStart {
		go runPoll(baseCtx)
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Store: store}
	healthHandler.Register(engine)
	recommendationHandler := &handler.RecommendationHandler{Repo: store}
	recommendationHandler.Register(engine)
	signalHandler := &handler.SignalHandler{Repo: store}
	signalHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Repo: store}
	marketHandler.Register(engine)
	paperHandler := &handler.PaperTradingHandler{Simulator: simulator}
	paperHandler.Register(engine)
	statusHandler := &handler.StatusHandler{Poller: tracker}
	statusHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Settings: settingsSvc}
	settingsHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config, logger *zap.Logger) (repository.Repository, func()) {
	if strings.EqualFold(strings.TrimSpace(cfg.DB.Driver), "memory") {
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() {}
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}
	return gormrepository.New(dbConn.Gorm), func() { _ = db.Close(dbConn) }
}

func initNotifier(cfg config.Config, logger *zap.Logger) notify.Notifier {
	var sinks notify.Multi
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "", logger)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}
	if cfg.Webhook.Enabled {
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			logger.Warn("webhook disabled, url is empty")
		} else {
			sinks = append(sinks, notify.Webhook{
				URL:  cfg.Webhook.URL,
				HTTP: &http.Client{Timeout: cfg.Webhook.Timeout},
			})
		}
	}
	if len(sinks) == 0 {
		return notify.Nop{}
	}
	return sinks
}

func initPaaSClient(cfg config.PaaSConfig, logger *zap.Logger) *paas.Client {
	p := paas.New(cfg)
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		logger.Warn("paas login failed (audit logs disabled)", zap.Error(err))
		return nil
	}
	logger.Info("paas login ok")
	return p
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
