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

package ledger

// Action types classify every ledger entry and determine both its legality
// and its balance effect.
const (
	ActionFirst     = "FIRST"
	ActionCreation  = "CREATION"
	ActionRefill    = "REFILL"
	ActionSale      = "SALE"
	ActionTransfer  = "TRANSFER"
	ActionSubscribe = "SUBSCRIBE"
	ActionBadge     = "BADGE"
	ActionDeposit   = "DEPOSIT"
	ActionRefund    = "REFUND"
	ActionFusion    = "FUSION"
)

// KnownAction reports whether the action string names a supported type.
func KnownAction(action string) bool {
	switch action {
	case ActionFirst, ActionCreation, ActionRefill, ActionSale, ActionTransfer,
		ActionSubscribe, ActionBadge, ActionDeposit, ActionRefund, ActionFusion:
		return true
	}
	return false
}

// debitsSender reports whether the action moves value out of the sender's
// token. FIRST is a pure anchor and CREATION mints into the receiver.
func debitsSender(action string) bool {
	switch action {
	case ActionFirst, ActionCreation:
		return false
	}
	return true
}

// requiresPositiveAmount reports whether a zero amount is rejected. FIRST is
// always zero and BADGE entries commonly carry no value.
func requiresPositiveAmount(action string) bool {
	switch action {
	case ActionFirst, ActionBadge:
		return false
	}
	return true
}
