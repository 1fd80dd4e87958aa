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

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.HubStore.
var _ store.HubStore = (*Service)(nil)

type Service struct {
	db *sql.DB
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
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewInMemoryService opens a private in-memory database, used by tests and cmd/setup dry runs.
func NewInMemoryService() (*Service, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("unable to open in-memory database: %w", err)
	}
	// A pooled connection would see its own empty in-memory database.
	db.SetMaxOpenConns(1)
	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return service, nil
}

// DB exposes the underlying handle for the ledger engine, which shares the
// same connection pool and schema but owns all token/transaction writes.
func (s *Service) DB() *sql.DB {
	return s.db
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Wallets: identity units, never deleted
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		public_pem TEXT NOT NULL,
		private_pem_enc TEXT NOT NULL DEFAULT '',
		source_ip TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Assets: one hash chain each
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		currency_code TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		origin_wallet_id TEXT NOT NULL REFERENCES wallets(id),
		archived BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Tokens: derived balance cache per (wallet, asset), minor units
	CREATE TABLE IF NOT EXISTS tokens (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		asset_id TEXT NOT NULL REFERENCES assets(id),
		value INTEGER NOT NULL DEFAULT 0 CHECK (value >= 0),
		last_transaction_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(wallet_id, asset_id)
	);

	-- Transactions: append-only hash chain per asset
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		hash TEXT NOT NULL UNIQUE,
		previous_hash TEXT NOT NULL DEFAULT '',
		sender_id TEXT NOT NULL REFERENCES wallets(id),
		receiver_id TEXT NOT NULL REFERENCES wallets(id),
		asset_id TEXT NOT NULL REFERENCES assets(id),
		amount INTEGER NOT NULL CHECK (amount >= 0),
		action TEXT NOT NULL,
		source_ip TEXT NOT NULL DEFAULT '',
		card_id TEXT NOT NULL DEFAULT '',
		primary_card_id TEXT NOT NULL DEFAULT '',
		bridge_payment_id TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_asset_created ON transactions(asset_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender_id, asset_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions(receiver_id, asset_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_bridge_action
		ON transactions(bridge_payment_id, action) WHERE bridge_payment_id != '';

	-- Places: federated point-of-sale nodes
	CREATE TABLE IF NOT EXISTS places (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		node_url TEXT NOT NULL DEFAULT '',
		node_public_pem TEXT NOT NULL DEFAULT '',
		node_admin_secret_enc TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS place_admins (
		place_id TEXT NOT NULL REFERENCES places(id),
		user_email TEXT NOT NULL,
		UNIQUE(place_id, user_email)
	);

	-- Federations: visibility/acceptance grouping, no balance effects
	CREATE TABLE IF NOT EXISTS federations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS federation_assets (
		federation_id TEXT NOT NULL REFERENCES federations(id),
		asset_id TEXT NOT NULL REFERENCES assets(id),
		UNIQUE(federation_id, asset_id)
	);

	CREATE TABLE IF NOT EXISTS federation_places (
		federation_id TEXT NOT NULL REFERENCES federations(id),
		place_id TEXT NOT NULL REFERENCES places(id),
		UNIQUE(federation_id, place_id)
	);

	-- Capability tokens: prefix + hash only, the secret is never stored
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		place_id TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		prefix TEXT NOT NULL UNIQUE,
		hashed_key TEXT NOT NULL,
		scope TEXT NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT 0,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Bridge payments: one row per provider credit, unique external reference
	CREATE TABLE IF NOT EXISTS bridge_payments (
		id TEXT PRIMARY KEY,
		external_ref TEXT NOT NULL UNIQUE,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		asset_id TEXT NOT NULL REFERENCES assets(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		refunded INTEGER NOT NULL DEFAULT 0 CHECK (refunded >= 0 AND refunded <= amount),
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bridge_payments_wallet ON bridge_payments(wallet_id, status);

	-- Card generation batches and physical cards
	CREATE TABLE IF NOT EXISTS origins (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		generation INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, generation)
	);

	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		origin_id TEXT NOT NULL REFERENCES origins(id),
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		user_wallet_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
