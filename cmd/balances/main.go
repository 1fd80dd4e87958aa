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
	"flag"
	"fmt"

	"ledger-hub-go/internal/common"
	"ledger-hub-go/internal/config"
	"ledger-hub-go/internal/ledger"

	"go.uber.org/zap"
)

// balances prints a wallet's cached token values and optionally audits the
// chains and cached balances behind them.
func main() {
	walletId := flag.String("wallet", "", "Wallet id to inspect")
	verify := flag.Bool("verify", false, "Recompute balances from the chain and verify every hash link")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *walletId == "" {
		zap.L().Fatal("-wallet is required")
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

	hubWallet, _, err := common.LoadHubIdentity(ctx, db)
	if err != nil {
		zap.L().Fatal("Failed to load hub identity", zap.Error(err))
	}
	engine := ledger.NewEngine(db.DB(), db, hubWallet.Id)

	wallet, err := db.GetWallet(ctx, *walletId)
	if err != nil {
		zap.L().Fatal("Failed to load wallet", zap.Error(err))
	}
	balances, err := db.ListWalletBalances(ctx, wallet.Id)
	if err != nil {
		zap.L().Fatal("Failed to list balances", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Balances for %s (%s)", wallet.Name, wallet.Id), common.DefaultWidth)
	if len(balances) == 0 {
		fmt.Println("no tokens")
	}
	for i, balance := range balances {
		prefix := common.BoxPrefix(i == len(balances)-1)
		fmt.Printf("%s %-10s: %12d minor units (asset %s)\n",
			prefix, balance.CurrencyCode, balance.Value, balance.AssetId)

		if !*verify {
			continue
		}
		if err := engine.VerifyChain(ctx, balance.AssetId); err != nil {
			zap.L().Error("Chain verification failed",
				zap.String("asset_id", balance.AssetId), zap.Error(err))
			continue
		}
		computed, err := engine.ReconcileToken(ctx, wallet.Id, balance.AssetId)
		if err != nil {
			zap.L().Error("Balance reconciliation failed",
				zap.String("asset_id", balance.AssetId), zap.Error(err))
			continue
		}
		fmt.Printf("%s   verified: chain intact, ledger total %d\n",
			common.BoxPrefix(i == len(balances)-1), computed)
	}
	common.PrintFooter("Done", common.DefaultWidth)
}
