package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the estimator service.
type Config struct {
	LogLevel     string
	HTTPPort     string
	MetricsAddr  string
	KafkaBrokers string
	RedisAddr    string
	PostgresDSN  string
	OTelEndpoint string

	// ConfirmMode selects where confirmations come from: "kafka" (fleet
	// bus), "manual" (local API only), or "auto" (every request confirms
	// itself immediately).
	ConfirmMode   string
	RequestTopic  string
	ResponseTopic string

	EvalInterval   time.Duration
	DefaultWait    time.Duration
	DefaultTimeout time.Duration
	DrainBattery   bool
	ThresholdSOC   float64

	// Linear battery model for waiting robots; watts of zero disables
	// projected drain regardless of per-session constraints.
	PowerDrawWatts    float64
	BatteryCapacityWh float64

	RateLimit       int
	RateLimitWindow time.Duration

	ReapSchedule string
	Retention    time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		HTTPPort:     v.GetString("http_port"),
		MetricsAddr:  v.GetString("metrics_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		RedisAddr:    v.GetString("redis_addr"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		OTelEndpoint: v.GetString("otel_endpoint"),

		ConfirmMode:   v.GetString("confirm_mode"),
		RequestTopic:  v.GetString("confirm_request_topic"),
		ResponseTopic: v.GetString("confirm_response_topic"),

		EvalInterval:   v.GetDuration("eval_interval"),
		DefaultWait:    v.GetDuration("default_wait"),
		DefaultTimeout: v.GetDuration("default_timeout"),
		DrainBattery:   v.GetBool("drain_battery"),
		ThresholdSOC:   v.GetFloat64("threshold_soc"),

		PowerDrawWatts:    v.GetFloat64("power_draw_watts"),
		BatteryCapacityWh: v.GetFloat64("battery_capacity_wh"),

		RateLimit:       v.GetInt("rate_limit"),
		RateLimitWindow: v.GetDuration("rate_limit_window"),

		ReapSchedule: v.GetString("reap_schedule"),
		Retention:    v.GetDuration("retention"),
	}
}
