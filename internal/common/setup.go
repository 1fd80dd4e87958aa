package common

import (
	"context"
	"errors"
	"log"
	"strings"

	"ledger-hub-go/internal/bridge"
	"ledger-hub-go/internal/database"
	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
	"ledger-hub-go/internal/trust"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService     *database.Service
	Engine        *ledger.Engine
	TrustService  *trust.Service
	BridgeService *bridge.Service
	HubWallet     *models.Wallet
	PrimaryAsset  *models.Asset
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full hub: database, ledger engine, trust
// layer and payment bridge. It expects cmd/setup to have provisioned the
// hub wallet and the primary bridged-fiat asset.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	hubWallet, primaryAsset, err := LoadHubIdentity(ctx, dbService)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	cipher, err := keys.NewCipher(cfg.Crypto.MasterKey)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	trustService := trust.NewService(dbService, cipher, cfg.Server.ReplayWindow)

	engine := ledger.NewEngine(dbService.DB(), dbService, hubWallet.Id)

	provider, err := bridge.NewHTTPProvider(cfg.Bridge.APIBase, cfg.Bridge.APIKey)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	bridgeService := bridge.NewService(dbService, engine, provider, hubWallet.Id, cfg.Bridge)

	zap.L().Info("Hub services initialized",
		zap.String("hub_wallet", hubWallet.Id),
		zap.String("primary_asset", primaryAsset.Id))

	return &Services{
		DbService:     dbService,
		Engine:        engine,
		TrustService:  trustService,
		BridgeService: bridgeService,
		HubWallet:     hubWallet,
		PrimaryAsset:  primaryAsset,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

// HubWalletName is the reserved wallet name of the hub's own bank wallet.
const HubWalletName = "hub-primary"

// LoadHubIdentity resolves the hub wallet and the bridged-fiat primary
// asset created by cmd/setup.
func LoadHubIdentity(ctx context.Context, db *database.Service) (*models.Wallet, *models.Asset, error) {
	primaryAsset, err := db.GetPrimaryAsset(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, errors.New("hub is not set up yet, run the setup command first")
		}
		return nil, nil, err
	}
	hubWallet, err := db.GetWallet(ctx, primaryAsset.OriginWalletId)
	if err != nil {
		return nil, nil, err
	}
	return hubWallet, primaryAsset, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
