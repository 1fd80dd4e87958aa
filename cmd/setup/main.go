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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"ledger-hub-go/internal/common"
	"ledger-hub-go/internal/config"
	"ledger-hub-go/internal/database"
	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
	"ledger-hub-go/internal/trust"

	"go.uber.org/zap"
)

func main() {
	genKey := flag.Bool("generate-master-key", false, "Print a fresh base64 master key and exit")
	assetName := flag.String("asset-name", "Bridged Euro", "Name of the primary bridged-fiat asset")
	currencyCode := flag.String("currency-code", "FEUR", "Currency code of the primary asset")
	federationsFile := flag.String("federations", "", "Optional path to federations.yaml seed file")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *genKey {
		masterKey, err := keys.GenerateMasterKey()
		if err != nil {
			zap.L().Fatal("Failed to generate master key", zap.Error(err))
		}
		fmt.Printf("HUB_MASTER_KEY=%s\n", masterKey)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	db, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := setup(ctx, db, cfg, *assetName, *currencyCode, *federationsFile); err != nil {
		zap.L().Fatal("Setup failed", zap.Error(err))
	}
}

// setup provisions the hub identity: the bank wallet, the single
// bridged-fiat primary asset with its FIRST anchor, and a root capability
// token printed once for the operator.
func setup(ctx context.Context, db *database.Service, cfg *models.Config, assetName, currencyCode, federationsFile string) error {
	if _, err := db.GetPrimaryAsset(ctx); err == nil {
		return errors.New("hub is already set up")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	cipher, err := keys.NewCipher(cfg.Crypto.MasterKey)
	if err != nil {
		return err
	}
	trustService := trust.NewService(db, cipher, cfg.Server.ReplayWindow)

	privatePEM, publicPEM, err := keys.GenerateKeyPair()
	if err != nil {
		return err
	}
	privateEnc, err := cipher.Encrypt(privatePEM)
	if err != nil {
		return err
	}
	hubWallet, err := db.CreateWallet(ctx, store.CreateWalletParams{
		Name:          common.HubWalletName,
		PublicPEM:     publicPEM,
		PrivatePEMEnc: privateEnc,
	})
	if err != nil {
		return err
	}

	primaryAsset, err := db.CreateAsset(ctx, store.CreateAssetParams{
		Name:           assetName,
		CurrencyCode:   currencyCode,
		Category:       models.AssetBridgedFiat,
		OriginWalletId: hubWallet.Id,
	})
	if err != nil {
		return err
	}

	engine := ledger.NewEngine(db.DB(), db, hubWallet.Id)
	first, err := engine.Append(ctx, ledger.AppendParams{
		SenderId:   hubWallet.Id,
		ReceiverId: hubWallet.Id,
		AssetId:    primaryAsset.Id,
		Amount:     0,
		Action:     ledger.ActionFirst,
	})
	if err != nil {
		// An unanchored primary asset would make every rerun report the
		// hub as already set up; remove it so setup stays retryable.
		if delErr := db.DeleteAsset(ctx, primaryAsset.Id); delErr != nil {
			zap.L().Error("Failed to remove unanchored primary asset",
				zap.String("asset_id", primaryAsset.Id), zap.Error(delErr))
		}
		return err
	}

	rootSecret, _, err := trustService.IssueKey(ctx, "hub-root", "", "", models.ScopeRoot)
	if err != nil {
		return err
	}

	if federationsFile != "" {
		seeds, err := common.LoadFederationSeeds(federationsFile)
		if err != nil {
			return err
		}
		if err := common.SeedFederations(ctx, db, seeds); err != nil {
			return err
		}
	}

	zap.L().Info("Hub set up",
		zap.String("hub_wallet", hubWallet.Id),
		zap.String("primary_asset", primaryAsset.Id),
		zap.String("first_hash", first.Hash))

	// The root token is shown exactly once; only its digest is stored.
	fmt.Printf("Hub wallet:     %s\n", hubWallet.Id)
	fmt.Printf("Primary asset:  %s (%s)\n", primaryAsset.Id, primaryAsset.CurrencyCode)
	fmt.Printf("Root API token: %s\n", rootSecret)
	return nil
}
