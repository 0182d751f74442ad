// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// RemoteModel is one entry of the provider's model catalogue.
type RemoteModel struct {
	ID      string
	OwnedBy string
	Created int64
}

// ListModels fetches the provider's model catalogue through the
// OpenAI-compatible /models endpoint, sorted by id. filter, when non-empty,
// keeps only ids containing it (case-insensitive).
func (c *Client) ListModels(ctx context.Context, filter string) ([]RemoteModel, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := openai.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL+"/"),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
		option.WithHeader("HTTP-Referer", c.siteURL),
		option.WithHeader("X-Title", c.siteName),
	)

	page, err := client.Models.List(ctx)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.StatusCode)
			}
			return nil, &APIError{Status: apiErr.StatusCode, Code: apiErr.Code, Message: msg}
		}
		return nil, fmt.Errorf("list models: %w", err)
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	models := make([]RemoteModel, 0, len(page.Data))
	for _, m := range page.Data {
		if filter != "" && !strings.Contains(strings.ToLower(m.ID), filter) {
			continue
		}
		models = append(models, RemoteModel{ID: m.ID, OwnedBy: m.OwnedBy, Created: m.Created})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })

	c.log.Debug("listed remote models", "count", len(models), "filter", filter)
	return models, nil
}
