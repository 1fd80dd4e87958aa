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

package bridge

import (
	"time"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

// Service is the idempotent adapter between the external payment provider
// and the ledger. Confirmations may arrive twice (webhook push and poll
// racing); the adapter guarantees exactly one CREATION/REFILL pair per
// external reference.
type Service struct {
	store           store.HubStore
	engine          *ledger.Engine
	provider        Provider
	primaryWalletId string
	confirmWait     time.Duration
	confirmRecheck  time.Duration
}

func NewService(st store.HubStore, engine *ledger.Engine, provider Provider, primaryWalletId string, cfg models.BridgeConfig) *Service {
	return &Service{
		store:           st,
		engine:          engine,
		provider:        provider,
		primaryWalletId: primaryWalletId,
		confirmWait:     cfg.ConfirmWait,
		confirmRecheck:  cfg.ConfirmRecheck,
	}
}
