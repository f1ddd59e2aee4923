package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// AssetStatusClient queries the remote transcoder for asset status.
type AssetStatusClient interface {
	GetAssetStatus(ctx context.Context, assetID string) (*models.RemoteAssetStatus, error)
}

type TranscoderClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewTranscoderClient(cfg *config.Config, logger *logrus.Logger) *TranscoderClient {
	return &TranscoderClient{
		baseURL:    cfg.Transcoder.BaseURL,
		apiToken:   cfg.Transcoder.APIToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *TranscoderClient) GetAssetStatus(ctx context.Context, assetID string) (*models.RemoteAssetStatus, error) {
	url := fmt.Sprintf("%s/v1/assets/%s", c.baseURL, assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		c.logger.Warnf("Transcoder API error: status %d, body: %s", resp.StatusCode, preview)
		return nil, fmt.Errorf("transcoder API returned status %d", resp.StatusCode)
	}

	var status models.RemoteAssetStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse asset status: %w", err)
	}
	return &status, nil
}

// TerminalFunc receives exactly one terminal result per poll loop: a ready
// status, an errored status mapped to err, or ErrPollTimeout.
type TerminalFunc func(status *models.RemoteAssetStatus, err error)

// Poller drives one status poll loop per session. A second Start while one
// loop is active is rejected, which keeps terminal callbacks single.
type Poller struct {
	client   AssetStatusClient
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	running bool
}

func NewPoller(client AssetStatusClient, cfg *config.Config, logger *logrus.Logger) *Poller {
	return &Poller{
		client:   client,
		interval: cfg.Pipeline.PollInterval,
		timeout:  cfg.Pipeline.PollTimeout,
		logger:   logger,
	}
}

// Start begins polling until a terminal status or the timeout ceiling.
// The terminal callback is invoked at most once.
func (p *Poller) Start(ctx context.Context, assetID string, onTerminal TerminalFunc) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrPollInProgress
	}
	p.running = true
	p.mu.Unlock()

	go p.loop(ctx, assetID, onTerminal)
	return nil
}

func (p *Poller) loop(ctx context.Context, assetID string, onTerminal TerminalFunc) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	finish := func(status *models.RemoteAssetStatus, err error) {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		onTerminal(status, err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		status, err := p.client.GetAssetStatus(pollCtx, assetID)
		if err != nil {
			// Transient request failures keep the loop going; only a
			// terminal status or the ceiling stops it.
			metrics.PollRequestsTotal.WithLabelValues("error").Inc()
			p.logger.Warnf("Asset status poll failed for %s: %v", assetID, err)
		} else {
			metrics.PollRequestsTotal.WithLabelValues(string(status.Status)).Inc()
			switch {
			case status.Status == models.AssetStatusErrored:
				finish(status, NewRemoteProcessingError("remote processing failed", fmt.Errorf("%s", status.ErrorMessage)))
				return
			case status.Status == models.AssetStatusReady && status.AssetID != "" && status.PlaybackID != "":
				finish(status, nil)
				return
			}
		}

		select {
		case <-pollCtx.Done():
			// The ceiling and a cancelled session both land here; only
			// the former is a timeout.
			if err := ctx.Err(); err != nil {
				finish(nil, err)
			} else {
				finish(nil, ErrPollTimeout)
			}
			return
		case <-ticker.C:
		}
	}
}
