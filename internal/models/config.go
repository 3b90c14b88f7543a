package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Jobs     JobsConfig
	Http     HttpConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Xendit   XenditConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// JobsConfig holds reconciliation job settings
type JobsConfig struct {
	Enabled               bool
	SettlementGracePeriod time.Duration
	SettlementInterval    time.Duration
	ReturnTimeoutWindow   time.Duration
	ReturnTimeoutInterval time.Duration
	CartCleanupInterval   time.Duration
	PageSize              int
	ScheduleFile          string
}

// HttpConfig holds the HTTP surface settings
type HttpConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	CronSecret      string
}

// RedisConfig enables the cross-process job lease when Url is set
type RedisConfig struct {
	Url     string
	LockTTL time.Duration
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
// PushTopic additionally routes push notifications through Kafka.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	PushTopic string
}

// XenditConfig holds payment gateway credentials
type XenditConfig struct {
	BaseUrl            string
	SecretKey          string
	WebhookToken       string
	SuccessRedirectUrl string
}
