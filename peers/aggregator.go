// Package peers implements the Peer Source Aggregator (spec.md §4.3):
// merging genesis, registry, and configuration peer sources into a
// deduplicated candidate set.
package peers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/internal/metrics"
)

// Candidate is the aggregator's output (spec.md §3 "PeerCandidate").
type Candidate struct {
	Pubkey      string `json:"pubkey"`
	RelayURL    string `json:"relayUrl"`
	BtpEndpoint string `json:"btpEndpoint,omitempty"`
	IlpAddress  string `json:"ilpAddress,omitempty"`
}

func (c Candidate) complete() bool {
	return c.IlpAddress != "" && c.BtpEndpoint != ""
}

// RegistryFetcher fetches registry-sourced candidates from a decentralized
// storage URL. The default implementation is an HTTP GET; tests inject a
// fake.
type RegistryFetcher func(ctx context.Context, url string) ([]Candidate, error)

// Aggregator produces a deduplicated candidate list from genesis, registry,
// and configuration sources (spec.md §4.3).
type Aggregator struct {
	Genesis       []Candidate
	ConfigPeers   []Candidate
	RegistryURL   string
	DefaultRelay  string
	FetchRegistry RegistryFetcher
	Log           logger.Logger
}

// NewAggregator wires sensible defaults (HTTP registry fetch, Noop logger).
func NewAggregator() *Aggregator {
	return &Aggregator{
		FetchRegistry: HTTPRegistryFetcher(5 * time.Second),
		Log:           logger.Noop(),
	}
}

// Load merges the three sources per the priority rule in spec.md §4.3:
// configuration overrides registry overrides genesis, deduplicated by
// pubkey. Entries lacking a relay URL inherit DefaultRelay; entries still
// lacking ilpAddress/btpEndpoint afterward are dropped as incomplete.
// Registry fetch failure is non-fatal (spec.md invariant "Non-fatal registry").
func (a *Aggregator) Load(ctx context.Context) ([]Candidate, error) {
	merged := make(map[string]Candidate, len(a.Genesis)+len(a.ConfigPeers))

	for _, c := range a.Genesis {
		merged[c.Pubkey] = c
	}

	if a.RegistryURL != "" && a.FetchRegistry != nil {
		registryPeers, err := a.FetchRegistry(ctx, a.RegistryURL)
		if err != nil {
			a.Log.Warn("registry fetch failed, proceeding with genesis+config", logger.Error(err))
		} else {
			metrics.CandidatesDiscovered.WithLabelValues("registry").Add(float64(len(registryPeers)))
			for _, c := range registryPeers {
				merged[c.Pubkey] = c
			}
		}
	}

	for _, c := range a.ConfigPeers {
		merged[c.Pubkey] = c
	}

	metrics.CandidatesDiscovered.WithLabelValues("genesis").Add(float64(len(a.Genesis)))
	metrics.CandidatesDiscovered.WithLabelValues("config").Add(float64(len(a.ConfigPeers)))

	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		if c.RelayURL == "" {
			c.RelayURL = a.DefaultRelay
		}
		if !c.complete() {
			a.Log.Debug("dropping incomplete peer candidate", logger.String("pubkey", c.Pubkey))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// HTTPRegistryFetcher builds a RegistryFetcher that GETs url and parses a
// JSON array of Candidate.
func HTTPRegistryFetcher(timeout time.Duration) RegistryFetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, url string) ([]Candidate, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("peers: build registry request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("peers: registry fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("peers: registry returned status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("peers: read registry body: %w", err)
		}
		var candidates []Candidate
		if err := json.Unmarshal(body, &candidates); err != nil {
			return nil, fmt.Errorf("peers: parse registry body: %w", err)
		}
		return candidates, nil
	}
}
