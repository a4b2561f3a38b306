package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"draftpad/logger"

	"github.com/google/uuid"
)

const (
	EventShown    = "suggestion_shown"
	EventAccepted = "suggestion_accepted"
	EventDisposed = "suggestion_disposed"
)

const suggestionGhostText = "GHOST_TEXT"

type trackRequest struct {
	EventType      string `json:"event_type"`
	SuggestionType string `json:"suggestion_type"`
	SuggestionID   string `json:"suggestion_id"`
	Lifespan       *int64 `json:"lifespan"`
	DeviceID       string `json:"device_id"`
}

// Tracker reports the ghost-suggestion lifecycle to an analytics endpoint.
// A Tracker with an empty endpoint is valid and drops everything.
type Tracker struct {
	endpoint   string
	apiKey     string
	deviceID   string
	httpClient *http.Client
}

// NewTracker creates a tracker. dataDir holds the persistent anonymous
// device id; pass "" for an ephemeral one.
func NewTracker(endpoint, apiKey, dataDir string) *Tracker {
	return &Tracker{
		endpoint:   endpoint,
		apiKey:     apiKey,
		deviceID:   loadOrCreateDeviceID(dataDir),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (t *Tracker) SuggestionShown(id string) {
	t.send(&trackRequest{
		EventType:      EventShown,
		SuggestionType: suggestionGhostText,
		SuggestionID:   id,
		DeviceID:       t.deviceID,
	})
}

func (t *Tracker) SuggestionAccepted(id string, lifespan time.Duration) {
	ms := lifespan.Milliseconds()
	t.send(&trackRequest{
		EventType:      EventAccepted,
		SuggestionType: suggestionGhostText,
		SuggestionID:   id,
		Lifespan:       &ms,
		DeviceID:       t.deviceID,
	})
}

func (t *Tracker) SuggestionDisposed(id string, lifespan time.Duration) {
	ms := lifespan.Milliseconds()
	t.send(&trackRequest{
		EventType:      EventDisposed,
		SuggestionType: suggestionGhostText,
		SuggestionID:   id,
		Lifespan:       &ms,
		DeviceID:       t.deviceID,
	})
}

func (t *Tracker) send(req *trackRequest) {
	if t.endpoint == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		body, err := json.Marshal(req)
		if err != nil {
			logger.Debug("metrics: marshal error: %v", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, bytes.NewReader(body))
		if err != nil {
			logger.Debug("metrics: create request error: %v", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
		}

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			logger.Debug("metrics: send error: %v", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			logger.Debug("metrics: server returned %d for %s", resp.StatusCode, req.EventType)
		} else {
			logger.Debug("metrics: sent %s (id=%s)", req.EventType, req.SuggestionID)
		}
	}()
}

func loadOrCreateDeviceID(dataDir string) string {
	if dataDir == "" {
		return uuid.NewString()
	}

	idPath := filepath.Join(dataDir, "device_id")

	data, err := os.ReadFile(idPath)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("metrics: could not create data dir %s: %v", dataDir, err)
		return id
	}
	if err := os.WriteFile(idPath, []byte(id), 0644); err != nil {
		logger.Warn("metrics: could not write device_id: %v", err)
	}
	return id
}
