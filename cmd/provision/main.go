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
	"strings"

	"ledger-hub-go/internal/common"
	"ledger-hub-go/internal/config"
	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
	"ledger-hub-go/internal/trust"

	"go.uber.org/zap"
)

// provision creates a Place from the hub operator's console, printing the
// temporary handshake token exactly once.
func main() {
	name := flag.String("name", "", "Place name")
	adminEmail := flag.String("admin", "", "Primary admin email")
	extraAdmins := flag.String("admins", "", "Comma-separated additional admin emails")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *name == "" || *adminEmail == "" {
		zap.L().Fatal("Both -name and -admin are required")
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

	cipher, err := keys.NewCipher(cfg.Crypto.MasterKey)
	if err != nil {
		zap.L().Fatal("Failed to build cipher", zap.Error(err))
	}
	trustService := trust.NewService(db, cipher, cfg.Server.ReplayWindow)

	privatePEM, publicPEM, err := keys.GenerateKeyPair()
	if err != nil {
		zap.L().Fatal("Failed to generate place key pair", zap.Error(err))
	}
	privateEnc, err := cipher.Encrypt(privatePEM)
	if err != nil {
		zap.L().Fatal("Failed to protect place private key", zap.Error(err))
	}
	wallet, err := db.CreateWallet(ctx, store.CreateWalletParams{
		Name:          *name,
		PublicPEM:     publicPEM,
		PrivatePEMEnc: privateEnc,
	})
	if err != nil {
		zap.L().Fatal("Failed to create place wallet", zap.Error(err))
	}

	admins := []string{*adminEmail}
	for _, email := range strings.Split(*extraAdmins, ",") {
		if email = strings.TrimSpace(email); email != "" {
			admins = append(admins, email)
		}
	}
	place, err := db.CreatePlace(ctx, *name, wallet.Id, admins)
	if err != nil {
		zap.L().Fatal("Failed to create place", zap.Error(err))
	}

	tempSecret, _, err := trustService.IssueKey(ctx, trust.TempKeyPrefix+place.Name, place.Id, *adminEmail, models.ScopeHandshake)
	if err != nil {
		zap.L().Fatal("Failed to issue handshake token", zap.Error(err))
	}

	fmt.Printf("Place:           %s\n", place.Id)
	fmt.Printf("Wallet:          %s\n", place.WalletId)
	fmt.Printf("Handshake token: %s\n", tempSecret)
}
