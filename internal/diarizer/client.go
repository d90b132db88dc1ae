package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"call-compliance-go/internal/logger"
	"call-compliance-go/internal/types"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client talks to an external speaker-diarization service over HTTP.
type Client struct {
	host string
}

func NewClient(host string) *Client {
	return &Client{host: strings.TrimRight(host, "/")}
}

type diarizeRequest struct {
	AudioRef string `json:"audio_ref"`
}

type diarizeResponse struct {
	Speakers map[string][]types.Segment `json:"speakers"`
}

func (c *Client) Diarize(ctx context.Context, audioRef string) (map[string][]types.Segment, error) {
	log := logger.Component("diarizer").WithField("audio_ref", audioRef)

	body, _ := json.Marshal(diarizeRequest{AudioRef: audioRef})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second

	// Each attempt builds a fresh request so retries carry a full body.
	var out diarizeResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.host+"/diarize", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()
		payload, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("request rejected: status %d body=%s", resp.StatusCode, payload))
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %v", err))
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		log.WithError(err).Warn("diarization request failed")
		return nil, err
	}
	if len(out.Speakers) == 0 {
		return nil, fmt.Errorf("diarization returned no speakers")
	}
	log.WithField("speakers", len(out.Speakers)).Info("diarization completed")
	return out.Speakers, nil
}
