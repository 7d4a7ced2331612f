package treasury

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jwaldner/ivsurface/internal/logger"
)

const defaultBaseURL = "https://api.fiscaldata.treasury.gov/services/api/fiscal_service"

// Client fetches the Treasury Bill average interest rate to use as the
// risk-free rate. The latest good value is cached so a flaky API never
// blocks a surface build; Rate is safe to call from request handlers while
// a scheduled Refresh runs.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu            sync.RWMutex
	lastKnownRate float64
	lastFetchTime time.Time
}

type treasuryResponse struct {
	Data []treasuryRate `json:"data"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

type treasuryRate struct {
	RecordDate            string `json:"record_date"`
	SecurityDesc          string `json:"security_desc"`
	AvgInterestRateAmount string `json:"avg_interest_rate_amt"`
}

// NewClient returns a Client seeded with fallbackRate. Call Refresh to
// replace the seed with a live value.
func NewClient(fallbackRate float64) *Client {
	return NewClientWithBaseURL(fallbackRate, defaultBaseURL)
}

// NewClientWithBaseURL is NewClient with an overridable endpoint, for tests.
func NewClientWithBaseURL(fallbackRate float64, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:       baseURL,
		lastKnownRate: fallbackRate,
	}
}

// Refresh fetches the most recent Treasury Bill rate and updates the cache.
// On failure the cache keeps its previous value.
func (c *Client) Refresh() (float64, error) {
	rate, err := c.fetchRate()
	if err != nil {
		c.mu.RLock()
		age := time.Since(c.lastFetchTime)
		last := c.lastKnownRate
		c.mu.RUnlock()
		logger.Log.Warnf("Treasury API failed (%v), keeping rate %.6f from %v ago",
			err, last, age.Round(time.Minute))
		return 0, err
	}

	c.mu.Lock()
	c.lastKnownRate = rate
	c.lastFetchTime = time.Now()
	c.mu.Unlock()

	logger.Log.Infof("Fetched Treasury Bill rate: %.3f%% (%.6f decimal)", rate*100, rate)
	return rate, nil
}

// Rate returns the cached risk-free rate: the last successful fetch, or the
// fallback the client was seeded with.
func (c *Client) Rate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastKnownRate
}

// CacheInfo reports the cached rate, its age, and whether a live fetch has
// ever succeeded.
func (c *Client) CacheInfo() (rate float64, age time.Duration, fetched bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastFetchTime.IsZero() {
		return c.lastKnownRate, 0, false
	}
	return c.lastKnownRate, time.Since(c.lastFetchTime), true
}

func (c *Client) fetchRate() (float64, error) {
	url := fmt.Sprintf("%s/v2/accounting/od/avg_interest_rates?fields=avg_interest_rate_amt,record_date&filter=security_desc:eq:Treasury%%20Bills&sort=-record_date&page[size]=1", c.baseURL)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch Treasury rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("Treasury API returned status %d", resp.StatusCode)
	}

	var payload treasuryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode Treasury response: %w", err)
	}

	if len(payload.Data) == 0 {
		return 0, fmt.Errorf("no Treasury rate data returned")
	}

	rateStr := payload.Data[0].AvgInterestRateAmount
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate %s: %w", rateStr, err)
	}

	// The API reports percent, e.g. "3.983" meaning 3.983%
	return rate / 100.0, nil
}
