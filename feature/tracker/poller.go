package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServerRecord is one server entry of an upstream snapshot.
type ServerRecord struct {
	ForeignID string
	Code      string
	Name      string
	Region    string
	Online    bool
	UtcOffset int
	SceneryID *string
}

// JourneyRecord is one active train run of an upstream snapshot.
type JourneyRecord struct {
	RunID           string
	ServerForeignID string
	TrainNumber     string
	Category        string
	Cancelled       bool
	ContinuesAs     *string
}

// DispatchPostRecord is one dispatch post of an upstream snapshot.
type DispatchPostRecord struct {
	ForeignID       string
	ServerForeignID string
	Name            string
	Latitude        float64
	Longitude       float64
	Difficulty      int
	Dispatchers     []string
}

// Poller is the contract with the external game API client. Every call
// returns the complete current upstream state for its kind; entities absent
// from a snapshot are treated as removed.
type Poller interface {
	FetchServers(ctx context.Context) ([]ServerRecord, error)
	FetchJourneys(ctx context.Context) ([]JourneyRecord, error)
	FetchDispatchPosts(ctx context.Context) ([]DispatchPostRecord, error)
}

// HTTPPoller is a thin JSON adapter over the upstream API, just enough for
// the collect command to run. Response shaping beyond decoding lives with
// the upstream service.
type HTTPPoller struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPoller creates a poller against the configured upstream base URL.
func NewHTTPPoller(cfg Config) *HTTPPoller {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}
	return &HTTPPoller{
		baseURL: cfg.UpstreamURL,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// FetchServers returns the current server listing.
func (p *HTTPPoller) FetchServers(ctx context.Context) ([]ServerRecord, error) {
	var out []ServerRecord
	if err := p.getJSON(ctx, "/servers-open", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchJourneys returns the currently active train runs across all servers.
func (p *HTTPPoller) FetchJourneys(ctx context.Context) ([]JourneyRecord, error) {
	var out []JourneyRecord
	if err := p.getJSON(ctx, "/trains-open", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDispatchPosts returns the current dispatch post listing.
func (p *HTTPPoller) FetchDispatchPosts(ctx context.Context) ([]DispatchPostRecord, error) {
	var out []DispatchPostRecord
	if err := p.getJSON(ctx, "/stations-open", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HTTPPoller) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream request %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response %s: %w", path, err)
	}
	return nil
}
