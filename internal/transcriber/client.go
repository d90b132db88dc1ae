package transcriber

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
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client talks to an external speech-to-text service over HTTP.
type Client struct {
	host string
}

func NewClient(host string) *Client {
	return &Client{host: strings.TrimRight(host, "/")}
}

type transcribeRequest struct {
	AudioRef string `json:"audio_ref"`
	Language string `json:"language"`
}

func (c *Client) Transcribe(ctx context.Context, audioRef string) (Result, error) {
	log := logger.Component("transcriber").WithField("audio_ref", audioRef)

	body, _ := json.Marshal(transcribeRequest{AudioRef: audioRef, Language: "no"})

	var out Result
	if err := doJSON(ctx, c.host+"/transcribe", body, &out); err != nil {
		log.WithError(err).Warn("transcription request failed")
		return Result{}, err
	}
	if out.Text == "" {
		return Result{}, fmt.Errorf("transcription returned empty text")
	}
	log.WithField("segments", len(out.Segments)).Info("transcription completed")
	return out, nil
}

// doJSON POSTs the payload with short exponential backoff around network
// errors and 5xx responses, then decodes the body into target. Exhausted
// retries surface as ErrUnavailable; a malformed body is a permanent error.
// Each attempt builds a fresh request so retries carry a full body.
func doJSON(ctx context.Context, url string, payload []byte, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("request rejected: status %d body=%s", resp.StatusCode, body))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %v", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
