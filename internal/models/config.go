package models

import "time"

// Config represents the application configuration. Loaded once at process
// start and threaded through constructors; never global state.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Bridge   BridgeConfig
	Crypto   CryptoConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ServerConfig holds HTTP hub settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// ReplayWindow bounds how stale a signed Date header may be.
	ReplayWindow time.Duration
}

// BridgeConfig holds payment-provider settings
type BridgeConfig struct {
	APIBase string
	APIKey  string
	// ConfirmWait is the hard ceiling a confirmation path waits on a
	// concurrent in-progress confirmation before validating independently.
	ConfirmWait    time.Duration
	ConfirmRecheck time.Duration
}

// CryptoConfig holds the hub master key used to encrypt secrets at rest.
type CryptoConfig struct {
	MasterKey string // 32 bytes, base64
}
