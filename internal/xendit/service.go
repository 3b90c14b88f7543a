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

package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

var ErrInvoiceNotFound = errors.New("invoice not found at gateway")

// Invoice is the subset of the gateway invoice resource we read back.
type Invoice struct {
	Id         string               `json:"id"`
	ExternalId string               `json:"external_id"`
	Status     models.InvoiceStatus `json:"status"`
	Amount     decimal.Decimal      `json:"amount"`
	PaidAmount *decimal.Decimal     `json:"paid_amount,omitempty"`
	InvoiceUrl string               `json:"invoice_url"`
}

// PaidOrAmount prefers the amount actually paid over the invoiced amount.
func (i Invoice) PaidOrAmount() decimal.Decimal {
	if i.PaidAmount != nil && i.PaidAmount.IsPositive() {
		return *i.PaidAmount
	}
	return i.Amount
}

// CreateInvoiceParams contains the parameters for a new gateway invoice
type CreateInvoiceParams struct {
	ExternalId  string
	Amount      decimal.Decimal
	PayerEmail  string
	Description string
}

type createInvoiceBody struct {
	ExternalId         string      `json:"external_id"`
	Amount             json.Number `json:"amount"`
	PayerEmail         string      `json:"payer_email,omitempty"`
	Description        string      `json:"description,omitempty"`
	Currency           string      `json:"currency"`
	SuccessRedirectUrl string      `json:"success_redirect_url,omitempty"`
}

type Service struct {
	client             http.Client
	baseUrl            string
	secretKey          string
	successRedirectUrl string
}

func NewService(cfg models.XenditConfig) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("xendit secret key cannot be empty")
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Service{
		client:             httpClient,
		baseUrl:            strings.TrimRight(cfg.BaseUrl, "/"),
		secretKey:          cfg.SecretKey,
		successRedirectUrl: cfg.SuccessRedirectUrl,
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

func (s *Service) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	body := createInvoiceBody{
		ExternalId:         params.ExternalId,
		Amount:             json.Number(params.Amount.String()),
		PayerEmail:         params.PayerEmail,
		Description:        params.Description,
		Currency:           "IDR",
		SuccessRedirectUrl: s.successRedirectUrl,
	}

	var invoice Invoice
	if err := s.do(ctx, http.MethodPost, "/v2/invoices", body, &invoice); err != nil {
		return nil, fmt.Errorf("unable to create invoice: %w", err)
	}

	zap.L().Info("Gateway invoice created",
		zap.String("external_id", invoice.ExternalId),
		zap.String("invoice_id", invoice.Id),
		zap.String("amount", invoice.Amount.String()))
	return &invoice, nil
}

// GetInvoiceByExternalId returns the most recent gateway invoice for externalId.
func (s *Service) GetInvoiceByExternalId(ctx context.Context, externalId string) (*Invoice, error) {
	var invoices []Invoice
	path := "/v2/invoices?external_id=" + url.QueryEscape(externalId)
	if err := s.do(ctx, http.MethodGet, path, nil, &invoices); err != nil {
		return nil, fmt.Errorf("unable to get invoice: %w", err)
	}
	if len(invoices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, externalId)
	}
	return &invoices[0], nil
}

func (s *Service) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseUrl+path, reader)
	if err != nil {
		return fmt.Errorf("unable to build request: %w", err)
	}
	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}
	return nil
}
