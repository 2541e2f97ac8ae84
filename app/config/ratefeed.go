// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RateFeedClient pulls currency rates from an HTTP feed to supplement the
// static table in the snapshot. The feed is optional; when it is down the
// snapshot's own rates stay authoritative and records without a rate are held
// pending, so a feed outage degrades rather than fails a sync.
type RateFeedClient struct {
	url    string
	client *retryablehttp.Client
}

// rateFeedEntry is the feed's wire format for one rate.
type rateFeedEntry struct {
	Date  string  `json:"date"`
	From  string  `json:"from"`
	Value float64 `json:"rate"`
}

// NewRateFeedClient creates a client for the given feed URL with bounded
// retries.
func NewRateFeedClient(url string, logger zerolog.Logger) *RateFeedClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryableLogger{logger}
	return &RateFeedClient{url: url, client: rc}
}

// Fetch retrieves the current rate table from the feed.
func (c *RateFeedClient) Fetch(ctx context.Context) (RateTable, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building rate feed request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching rate feed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("rate feed returned %s", resp.Status)
	}

	var entries []rateFeedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "decoding rate feed")
	}

	table := make(RateTable, 0, len(entries))
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "rate feed date %q", e.Date)
		}
		table = append(table, Rate{Date: date, From: e.From, Value: e.Value})
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// retryableLogger adapts zerolog to retryablehttp's leveled logger.
type retryableLogger struct {
	log zerolog.Logger
}

func (l retryableLogger) Error(msg string, kv ...interface{}) {
	l.log.Error().Msg(format(msg, kv))
}

func (l retryableLogger) Info(msg string, kv ...interface{}) {
	l.log.Info().Msg(format(msg, kv))
}

func (l retryableLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debug().Msg(format(msg, kv))
}

func (l retryableLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn().Msg(format(msg, kv))
}

func format(msg string, kv []interface{}) string {
	if len(kv) == 0 {
		return msg
	}
	return fmt.Sprintf("%s %v", msg, kv)
}
