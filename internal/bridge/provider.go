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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
)

// Checkout is the provider's view of one inbound payment.
type Checkout struct {
	ExternalRef string
	WalletId    string
	AssetId     string
	Amount      int64 // minor units
	Paid        bool
}

// Provider abstracts the external payment processor.
type Provider interface {
	FetchCheckout(ctx context.Context, externalRef string) (*Checkout, error)
	RefundCheckout(ctx context.Context, externalRef string, amount int64) error
}

// HTTPProvider talks to a Stripe-style checkout API.
type HTTPProvider struct {
	apiBase string
	apiKey  string
	client  http.Client
}

func NewHTTPProvider(apiBase, apiKey string) (*HTTPProvider, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return &HTTPProvider{
		apiBase: strings.TrimSuffix(apiBase, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

type checkoutPayload struct {
	Id            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Metadata      struct {
		WalletId string `json:"wallet_id"`
		AssetId  string `json:"asset_id"`
	} `json:"metadata"`
}

func (p *HTTPProvider) FetchCheckout(ctx context.Context, externalRef string) (*Checkout, error) {
	endpoint := p.apiBase + "/checkout/sessions/" + url.PathEscape(externalRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch checkout %s: %w", externalRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("checkout %s returned status %d: %s", externalRef, resp.StatusCode, string(body))
	}

	var payload checkoutPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unable to decode checkout %s: %w", externalRef, err)
	}

	amount, err := MinorUnits(payload.Amount)
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", externalRef, err)
	}

	return &Checkout{
		ExternalRef: payload.Id,
		WalletId:    payload.Metadata.WalletId,
		AssetId:     payload.Metadata.AssetId,
		Amount:      amount,
		Paid:        payload.PaymentStatus == "paid",
	}, nil
}

func (p *HTTPProvider) RefundCheckout(ctx context.Context, externalRef string, amount int64) error {
	form := url.Values{}
	form.Set("payment_intent", externalRef)
	form.Set("amount", strconv.FormatInt(amount, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("unable to build refund request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to refund checkout %s: %w", externalRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("refund of %s returned status %d: %s", externalRef, resp.StatusCode, string(body))
	}
	return nil
}

// MinorUnits converts a provider decimal amount ("25.00") to minor currency
// units, rejecting values that do not land on a whole cent.
func MinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q: %w", amount, err)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %q is not a whole number of cents", amount)
	}
	return cents.IntPart(), nil
}
