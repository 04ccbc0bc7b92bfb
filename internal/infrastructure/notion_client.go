package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"feedbackbot/internal/config"
	"feedbackbot/internal/entities"
	"feedbackbot/internal/metrics"

	"github.com/rs/zerolog"
)

const notionPageSize = 100

// NotionClient reads database records from the Notion API.
type NotionClient struct {
	token   string
	baseURL string
	version string
	http    *http.Client
	logger  zerolog.Logger
}

// NewNotionClient creates a client from cfg. It fails before any network
// call when the token or database id is missing.
func NewNotionClient(cfg config.Config, logger zerolog.Logger) (*NotionClient, error) {
	var missing []string
	if cfg.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if cfg.NotionDatabaseID == "" {
		missing = append(missing, "NOTION_DATABASE_ID")
	}
	if len(missing) > 0 {
		return nil, &entities.ConfigurationError{Missing: missing}
	}
	return &NotionClient{
		token:   cfg.NotionToken,
		baseURL: cfg.NotionAPIBase,
		version: cfg.NotionVersion,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		logger:  logger.With().Str("component", "notion").Logger(),
	}, nil
}

type queryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

// FetchAll returns every record of the database, following pagination
// cursors until the API reports no further pages. Any failed page aborts
// the whole fetch.
func (c *NotionClient) FetchAll(ctx context.Context, databaseID string) ([]entities.Record, error) {
	var (
		all    []entities.Record
		cursor string
		pages  int
	)
	for {
		page, err := c.queryPage(ctx, databaseID, cursor)
		if err != nil {
			return nil, err
		}
		pages++
		for _, raw := range page.Results {
			all = append(all, c.decodeRecord(raw))
		}
		metrics.NotionPagesFetched.Inc()
		metrics.RecordsFetched.Add(float64(len(page.Results)))

		if !page.HasMore || page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}
	c.logger.Debug().Int("pages", pages).Int("records", len(all)).Msg("database fetched")
	return all, nil
}

func (c *NotionClient) queryPage(ctx context.Context, databaseID, cursor string) (*queryResponse, error) {
	data, err := json.Marshal(queryRequest{PageSize: notionPageSize, StartCursor: cursor})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	endpoint := fmt.Sprintf("%s/databases/%s/query", c.baseURL, url.PathEscape(databaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &entities.UpstreamError{Service: "notion", Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &entities.UpstreamError{Service: "notion", StatusCode: res.StatusCode, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error().Int("status", res.StatusCode).Str("body", string(body)).Msg("database query failed")
		return nil, &entities.UpstreamError{Service: "notion", StatusCode: res.StatusCode, Body: string(body)}
	}

	var page queryResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &entities.UpstreamError{Service: "notion", StatusCode: res.StatusCode, Body: string(body), Err: fmt.Errorf("decode query response: %w", err)}
	}
	return &page, nil
}

// decodeRecord decodes one page result. A result that does not decode is
// still returned, carrying DecodeErr, so the rest of the batch survives.
func (c *NotionClient) decodeRecord(raw json.RawMessage) entities.Record {
	var rec entities.Record
	err := json.Unmarshal(raw, &rec)
	if err == nil {
		return rec
	}

	var ident struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &ident)
	c.logger.Warn().Err(err).Str("record_id", ident.ID).Msg("could not decode record")
	return entities.Record{
		ID:        ident.ID,
		DecodeErr: &entities.FormattingError{RecordID: ident.ID, Err: err},
	}
}
