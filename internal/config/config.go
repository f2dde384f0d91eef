package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cron         CronConfig         `mapstructure:"cron"`
	Poller       PollerConfig       `mapstructure:"poller"`
	Polymarket   PolymarketConfig   `mapstructure:"polymarket"`
	TradeStream  TradeStreamConfig  `mapstructure:"trade_stream"`
	Detector     DetectorConfig     `mapstructure:"detector"`
	Scoring      ScoringConfig      `mapstructure:"scoring"`
	PaperTrading PaperTradingConfig `mapstructure:"paper_trading"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Webhook      WebhookConfig      `mapstructure:"webhook"`
	PaaS         PaaSConfig         `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockKey  string        `mapstructure:"lock_key"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type CronConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Poll              string `mapstructure:"poll"`
	PerformanceDigest string `mapstructure:"performance_digest"`
	DailyMetrics      string `mapstructure:"daily_metrics"`
}

type PollerConfig struct {
	RunOnStart      bool          `mapstructure:"run_on_start"`
	MarketLimit     int           `mapstructure:"market_limit"`
	MinMarketVolume float64       `mapstructure:"min_market_volume"`
	Concurrency     int           `mapstructure:"concurrency"`
	MarketTimeout   time.Duration `mapstructure:"market_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type PolymarketConfig struct {
	GammaBaseURL    string        `mapstructure:"gamma_base_url"`
	ClobBaseURL     string        `mapstructure:"clob_base_url"`
	DataBaseURL     string        `mapstructure:"data_base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  int           `mapstructure:"requests_per_sec"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed"`
	TradeLimit      int           `mapstructure:"trade_limit"`
}

type TradeStreamConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Retention       time.Duration `mapstructure:"retention"`
}

type DetectorConfig struct {
	VolumeSpikeMultiplier    float64       `mapstructure:"volume_spike_multiplier"`
	VolumeSpikeWindow        time.Duration `mapstructure:"volume_spike_window"`
	SmartMoneyMinVolume      float64       `mapstructure:"smart_money_min_volume"`
	SmartMoneyMaxPriceChange float64       `mapstructure:"smart_money_max_price_change_pct"`
	ShortWindow              time.Duration `mapstructure:"short_window"`
	BookImbalanceThreshold   float64       `mapstructure:"book_imbalance_threshold"`
	LiquidityDrainThreshold  float64       `mapstructure:"liquidity_drain_threshold_pct"`
	LargeOrderThreshold      float64       `mapstructure:"large_order_threshold"`
	LargeOrderWindow         time.Duration `mapstructure:"large_order_window"`
}

type ScoringConfig struct {
	Weights             map[string]float64 `mapstructure:"weights"`
	MinWhaleScore       int                `mapstructure:"min_whale_score"`
	HighConfidenceScore int                `mapstructure:"high_confidence_score"`
	MaxRecommendations  int                `mapstructure:"max_recommendations"`
}

type PaperTradingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	AutoEnter bool          `mapstructure:"auto_enter"`
	BetSize   float64       `mapstructure:"bet_size"`
	Hold      time.Duration `mapstructure:"hold"`
	StatsDays int           `mapstructure:"stats_days"`
}

// RiskConfig limits auto-entered paper trades. Zero disables a limit.
type RiskConfig struct {
	MaxOpenPositions int     `mapstructure:"max_open_positions"`
	MaxTotalExposure float64 `mapstructure:"max_total_exposure"`
	MaxPerMarket     float64 `mapstructure:"max_per_market"`
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`
	OnePerMarket     bool    `mapstructure:"one_per_market"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PaaSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_key", "whaletracker:poll_cycle")
	v.SetDefault("redis.lock_ttl", "10m")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.poll", "@every 300s")
	v.SetDefault("cron.performance_digest", "0 0 9 * * *")
	v.SetDefault("cron.daily_metrics", "0 5 0 * * *")

	v.SetDefault("poller.run_on_start", true)
	v.SetDefault("poller.market_limit", 100)
	v.SetDefault("poller.min_market_volume", 500000)
	v.SetDefault("poller.concurrency", 8)
	v.SetDefault("poller.market_timeout", "30s")
	v.SetDefault("poller.fetch_timeout", "30s")
	v.SetDefault("poller.retention_days", 30)
	v.SetDefault("poller.cleanup_interval", "24h")

	v.SetDefault("polymarket.gamma_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_base_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.data_base_url", "https://data-api.polymarket.com")
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.requests_per_sec", 5)
	v.SetDefault("polymarket.max_retry_elapsed", "10s")
	v.SetDefault("polymarket.trade_limit", 50)

	v.SetDefault("trade_stream.enabled", false)
	v.SetDefault("trade_stream.url", "")
	v.SetDefault("trade_stream.refresh_interval", "30s")
	v.SetDefault("trade_stream.retention", "10m")

	v.SetDefault("detector.volume_spike_multiplier", 5.0)
	v.SetDefault("detector.volume_spike_window", "60m")
	v.SetDefault("detector.smart_money_min_volume", 50000)
	v.SetDefault("detector.smart_money_max_price_change_pct", 2.0)
	v.SetDefault("detector.short_window", "10m")
	v.SetDefault("detector.book_imbalance_threshold", 0.70)
	v.SetDefault("detector.liquidity_drain_threshold_pct", 20.0)
	v.SetDefault("detector.large_order_threshold", 50000)
	v.SetDefault("detector.large_order_window", "5m")

	v.SetDefault("scoring.weights", map[string]float64{
		"volume_spike":    30,
		"smart_money":     25,
		"book_imbalance":  20,
		"liquidity_drain": 15,
		"large_order":     10,
	})
	v.SetDefault("scoring.min_whale_score", 50)
	v.SetDefault("scoring.high_confidence_score", 75)
	v.SetDefault("scoring.max_recommendations", 10)

	v.SetDefault("paper_trading.enabled", true)
	v.SetDefault("paper_trading.auto_enter", true)
	v.SetDefault("paper_trading.bet_size", 100)
	v.SetDefault("paper_trading.hold", "24h")
	v.SetDefault("paper_trading.stats_days", 7)

	v.SetDefault("risk.max_open_positions", 0)
	v.SetDefault("risk.max_total_exposure", 0)
	v.SetDefault("risk.max_per_market", 0)
	v.SetDefault("risk.max_daily_loss", 0)
	v.SetDefault("risk.one_per_market", false)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("paas.base_url", "")
	v.SetDefault("paas.api_key", "")
	v.SetDefault("paas.agent", "whale-tracker")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
