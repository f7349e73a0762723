// Package arbitration reads dispute status from the external arbitration
// service.
package arbitration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arc-invoice/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.kleros.io"

const (
	StatusWaiting  = "waiting"
	StatusEvidence = "evidence"
	StatusVoting   = "voting"
	StatusAppeal   = "appeal"
	StatusResolved = "resolved"
)

type Dispute struct {
	ID                    string  `json:"id"`
	Status                string  `json:"status"`
	Ruling                *int    `json:"ruling"`
	CurrentRuling         *int    `json:"currentRuling"`
	EvidenceDeadline      string  `json:"evidenceDeadline"`
	AppealDeadline        *string `json:"appealDeadline"`
	Arbitrated            string  `json:"arbitrated"`
	NumberOfRulingOptions int     `json:"numberOfRulingOptions"`
}

// Resolved reports whether the dispute has a final ruling.
func (d *Dispute) Resolved() bool {
	return d.Status == StatusResolved && d.Ruling != nil
}

// Client talks to the arbitration HTTP API. Requests share one limiter so a
// polling sweep over many disputes stays under the service's rate limit.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

func NewClient(baseURL string, rps float64, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		log:        log,
	}
}

// GetDispute fetches one dispute. An unknown dispute yields (nil, nil).
func (c *Client) GetDispute(ctx context.Context, id string) (*Dispute, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/disputes/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.Get().Arbitration.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("arbitration service unavailable: %w", err)
	}
	defer resp.Body.Close()
	metrics.Get().Arbitration.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arbitration service returned %d: %s", resp.StatusCode, string(body))
	}

	var d Dispute
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dispute %s: %w", id, err)
	}
	if d.ID == "" {
		d.ID = id
	}
	c.log.Debug("arbitration dispute fetched", zap.String("dispute_id", id), zap.String("status", d.Status))
	return &d, nil
}
