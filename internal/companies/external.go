package companies

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/metrics"
)

// FetchObserver records the result of an external fetch
type FetchObserver interface {
	ObserveExternalFetch(result string)
}

var _ FetchObserver = (*metrics.Registry)(nil)

// FallbackSources is the dataset served when no external API is configured or
// the API is unavailable.
func FallbackSources() []emissions.EmissionSource {
	return []emissions.EmissionSource{
		{Type: emissions.SourceElectricity, Emission: 1200},
		{Type: emissions.SourceTransport, Emission: 800},
		{Type: emissions.SourceSupplyChain, Emission: 1500},
	}
}

// ExternalSource fetches emission sources for a company from a third-party API
// behind a circuit breaker.
type ExternalSource struct {
	baseURL  string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	observer FetchObserver
	logger   *zap.Logger
}

// NewExternalSource creates an external source client. An empty baseURL
// always serves the fallback dataset.
func NewExternalSource(baseURL string, timeout time.Duration, observer FetchObserver, logger *zap.Logger) *ExternalSource {
	settings := gobreaker.Settings{
		Name:        "external-emissions",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &ExternalSource{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		breaker:  gobreaker.NewCircuitBreaker(settings),
		observer: observer,
		logger:   logger,
	}
}

// Fetch returns the company's sources from the external API. When the API is
// unconfigured, failing, or the breaker is open it returns the fallback
// dataset and fallback=true.
func (e *ExternalSource) Fetch(ctx context.Context, companyName string) ([]emissions.EmissionSource, bool, error) {
	if e.baseURL == "" {
		e.observe("fallback")
		return FallbackSources(), true, nil
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.fetch(ctx, companyName)
	})
	if err != nil {
		e.logger.Warn("External emission fetch failed, serving fallback data",
			zap.String("company", companyName),
			zap.Error(err),
		)
		e.observe("fallback")
		return FallbackSources(), true, nil
	}

	e.observe("success")
	return result.([]emissions.EmissionSource), false, nil
}

// State returns the breaker state
func (e *ExternalSource) State() gobreaker.State {
	return e.breaker.State()
}

type externalRecord struct {
	Type     string   `json:"type"`
	Emission *float64 `json:"emission"`
}

func (e *ExternalSource) fetch(ctx context.Context, companyName string) ([]emissions.EmissionSource, error) {
	endpoint := e.baseURL + "?company=" + url.QueryEscape(companyName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call emission API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("emission API returned status %d", resp.StatusCode)
	}

	var records []externalRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode emission API response: %w", err)
	}

	decoded := make([]emissions.SourceRecord, len(records))
	for i, r := range records {
		decoded[i] = emissions.SourceRecord{Type: r.Type, Emission: r.Emission}
	}
	return emissions.ValidateRecords(decoded)
}

func (e *ExternalSource) observe(result string) {
	if e.observer != nil {
		e.observer.ObserveExternalFetch(result)
	}
}
