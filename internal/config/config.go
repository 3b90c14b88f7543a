/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"jastip-settlement-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	gracePeriod, err := getEnvDuration("SETTLEMENT_GRACE_PERIOD", 60*time.Second)
	if err != nil {
		return nil, err
	}
	if gracePeriod <= 0 {
		return nil, fmt.Errorf("SETTLEMENT_GRACE_PERIOD must be positive, got %s", gracePeriod)
	}

	settlementInterval, err := getEnvDuration("SETTLEMENT_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	timeoutWindow, err := getEnvDuration("RETURN_TIMEOUT_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	if timeoutWindow <= 0 {
		return nil, fmt.Errorf("RETURN_TIMEOUT_WINDOW must be positive, got %s", timeoutWindow)
	}

	timeoutInterval, err := getEnvDuration("RETURN_TIMEOUT_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cartInterval, err := getEnvDuration("CART_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getEnvDuration("REDIS_LOCK_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	pageSize := getEnvInt("JOB_PAGE_SIZE", 200)
	if pageSize <= 0 {
		return nil, fmt.Errorf("JOB_PAGE_SIZE must be positive, got %d", pageSize)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "jastip.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  connMaxLifetime,
			ConnMaxIdleTime:  connMaxIdleTime,
			PingTimeout:      pingTimeout,
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Jobs: models.JobsConfig{
			Enabled:               getEnvBool("SCHEDULER_ENABLED", true),
			SettlementGracePeriod: gracePeriod,
			SettlementInterval:    settlementInterval,
			ReturnTimeoutWindow:   timeoutWindow,
			ReturnTimeoutInterval: timeoutInterval,
			CartCleanupInterval:   cartInterval,
			PageSize:              pageSize,
			ScheduleFile:          getEnvString("JOBS_FILE", ""),
		},
		Http: models.HttpConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			ShutdownTimeout: shutdownTimeout,
			CronSecret:      getEnvString("CRON_SECRET", ""),
		},
		Redis: models.RedisConfig{
			Url:     getEnvString("REDIS_URL", ""),
			LockTTL: lockTTL,
		},
		Kafka: models.KafkaConfig{
			Brokers:   getEnvList("KAFKA_BROKERS"),
			Topic:     getEnvString("KAFKA_TOPIC", "jastip.settlement.audit"),
			PushTopic: getEnvString("KAFKA_PUSH_TOPIC", ""),
		},
		Xendit: models.XenditConfig{
			BaseUrl:            getEnvString("XENDIT_BASE_URL", "https://api.xendit.co"),
			SecretKey:          getEnvString("XENDIT_SECRET_KEY", ""),
			WebhookToken:       getEnvString("XENDIT_WEBHOOK_TOKEN", ""),
			SuccessRedirectUrl: getEnvString("XENDIT_SUCCESS_REDIRECT_URL", ""),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
