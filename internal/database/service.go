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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"jastip-settlement-go/internal/models"
	"jastip-settlement-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db    *sql.DB
	clock func() time.Time
}

// MemoryConfig returns settings for a private in-memory database. SQLite gives
// every connection its own :memory: database, so the pool is pinned to one
// connection that never expires.
func MemoryConfig() models.DatabaseConfig {
	return models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, clock: time.Now}
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// SetClock replaces the server clock. Used by tests and dry runs.
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Now returns the store's server time at millisecond precision, the
// resolution every timestamp column is stored at.
func (s *Service) Now(_ context.Context) (time.Time, error) {
	return s.now(), nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	schema := `
	-- Users own the saldo balance; saldo is only ever incremented in place
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		saldo_minor INTEGER NOT NULL DEFAULT 0 CHECK (saldo_minor >= 0),
		fcm_token TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL DEFAULT '',
		seller_id TEXT NOT NULL DEFAULT '',
		amount_minor INTEGER NOT NULL DEFAULT 0,
		escrow_amount_minor INTEGER NOT NULL DEFAULT 0,
		is_escrow BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		delivered_at INTEGER,
		completed_at INTEGER,
		refunded_at INTEGER,
		release_to_seller_at INTEGER,
		auto_completed BOOLEAN NOT NULL DEFAULT 0,
		auto_completed_at INTEGER,
		rating INTEGER,
		refund_amount_minor INTEGER,
		refund_reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	-- Settlement candidate scan
	CREATE INDEX IF NOT EXISTS idx_transactions_settlement ON transactions(status, completed_at, delivered_at);

	CREATE TABLE IF NOT EXISTS return_requests (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL DEFAULT '',
		seller_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		response_reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		responded_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_return_requests_transaction ON return_requests(transaction_id, status);
	CREATE INDEX IF NOT EXISTS idx_return_requests_status_created ON return_requests(status, created_at);

	-- Append-only refund audit trail
	CREATE TABLE IF NOT EXISTS refund_logs (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		return_request_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL DEFAULT '',
		seller_id TEXT NOT NULL DEFAULT '',
		refund_amount_minor INTEGER NOT NULL,
		original_amount_minor INTEGER NOT NULL,
		escrow_amount_minor INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		buyer_reason TEXT NOT NULL DEFAULT '',
		seller_response TEXT NOT NULL DEFAULT '',
		processed_at INTEGER NOT NULL,
		processed_by TEXT NOT NULL,
		type TEXT NOT NULL,
		UNIQUE(transaction_id, return_request_id)
	);

	CREATE TABLE IF NOT EXISTS auto_return_errors (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		retryable BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_auto_return_errors_timestamp ON auto_return_errors(timestamp);

	CREATE TABLE IF NOT EXISTS invoices (
		external_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		status TEXT NOT NULL,
		gateway_invoice_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		paid_at INTEGER,
		paid_amount_minor INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id);

	CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		deadline INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cart_items_deadline ON cart_items(deadline);

	-- Per-user inbox for chat messages and announcements
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		sender_id TEXT NOT NULL DEFAULT '',
		sender_name TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Insert 3 dummy users for testing if configured to do so
	if createDummyUsers {
		users := []struct {
			id    string
			name  string
			email string
		}{
			{uuid.New().String(), "Alice Johnson", "alice.johnson@example.com"},
			{uuid.New().String(), "Bob Smith", "bob.smith@example.com"},
			{uuid.New().String(), "Carol Williams", "carol.williams@example.com"},
		}

		now := toMillis(s.now())
		for _, user := range users {
			_, err := s.db.ExecContext(ctx, queryInsertUser, user.id, user.name, user.email, now, now)
			if err != nil {
				zap.L().Error("Failed to insert dummy user", zap.String("name", user.name), zap.Error(err))
			} else {
				zap.L().Info("Dummy user created", zap.String("id", user.id), zap.String("name", user.name))
			}
		}
	} else {
		zap.L().Info("Skipping dummy user creation (CREATE_DUMMY_USERS=false)")
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// cursorMillis maps the zero cursor below every stored timestamp.
func cursorMillis(c store.Cursor) int64 {
	if c.At.IsZero() {
		return math.MinInt64
	}
	return toMillis(c.At)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// Money is stored as integer minor units (two decimal places).
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func nullMinor(d *decimal.Decimal) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMinor(*d), Valid: true}
}

func fromNullMinor(v sql.NullInt64) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := fromMinor(v.Int64)
	return &d
}
