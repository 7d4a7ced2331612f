package alpaca

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwaldner/ivsurface/internal/logger"
)

// AlpacaInterface is the market data surface the handlers consume, so tests
// can stand in a stub for the live client.
type AlpacaInterface interface {
	GetStockPrice(symbol string) (float64, error)
	GetCallContracts(symbol string) ([]CallContract, error)
}

const (
	// Rate limiting for the Basic plan (200 requests per minute)
	BasicPlanDelay = 350 * time.Millisecond

	// HTTP timeout
	DefaultTimeout = 30 * time.Second

	// Contracts returned per page of the contracts endpoint
	contractsPageLimit = 10000
)

type Client struct {
	APIKey     string
	SecretKey  string
	BaseURL    string
	DataURL    string
	HTTPClient *http.Client
}

func NewClient(apiKey, secretKey string) *Client {
	return &Client{
		APIKey:    apiKey,
		SecretKey: secretKey,
		BaseURL:   "https://api.alpaca.markets",
		DataURL:   "https://data.alpaca.markets",
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// CallContract is one call option row from the contracts endpoint, reduced
// to what the surface build needs. ClosePrice is zero when Alpaca has no
// close for the contract; such rows fail the solve downstream and are
// dropped there, matching how worthless quotes are treated.
type CallContract struct {
	Symbol         string
	Strike         float64
	ExpirationDate string // YYYY-MM-DD
	ClosePrice     float64
}

type latestBarsResponse struct {
	Bars map[string]struct {
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Open      float64 `json:"o"`
		Timestamp string  `json:"t"`
		Volume    int64   `json:"v"`
	} `json:"bars"`
}

type contractRow struct {
	Symbol         string      `json:"symbol"`
	Status         string      `json:"status"`
	Tradable       bool        `json:"tradable"`
	ExpirationDate string      `json:"expiration_date"`
	Type           string      `json:"type"`
	StrikePrice    string      `json:"strike_price"`
	ClosePrice     interface{} `json:"close_price"`
}

type contractsResponse struct {
	Contracts     []contractRow `json:"option_contracts"`
	NextPageToken interface{}   `json:"next_page_token"`
}

// GetStockPrice returns the latest bar close for a symbol.
func (c *Client) GetStockPrice(symbol string) (float64, error) {
	endpoint := fmt.Sprintf("/v2/stocks/bars/latest?symbols=%s", url.QueryEscape(symbol))

	body, err := c.get(c.DataURL + endpoint)
	if err != nil {
		return 0, err
	}

	var payload latestBarsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse latest bars response: %w", err)
	}

	bar, ok := payload.Bars[symbol]
	if !ok {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	if bar.Close <= 0 {
		return 0, fmt.Errorf("non-positive close %f for %s", bar.Close, symbol)
	}

	logger.Log.Debugf("Latest %s close: %.2f", symbol, bar.Close)
	return bar.Close, nil
}

// GetCallContracts fetches every active call contract for an underlying,
// following pagination until the API stops handing out page tokens.
func (c *Client) GetCallContracts(symbol string) ([]CallContract, error) {
	var contracts []CallContract
	pageToken := ""

	for {
		endpoint := fmt.Sprintf("/v2/options/contracts?underlying_symbols=%s&type=call&status=active&limit=%d",
			url.QueryEscape(symbol), contractsPageLimit)
		if pageToken != "" {
			endpoint += "&page_token=" + url.QueryEscape(pageToken)
		}

		body, err := c.get(c.BaseURL + endpoint)
		if err != nil {
			return nil, err
		}

		var payload contractsResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse contracts response: %w", err)
		}

		for _, row := range payload.Contracts {
			if !row.Tradable {
				continue
			}
			strike, err := strconv.ParseFloat(row.StrikePrice, 64)
			if err != nil || strike <= 0 {
				logger.Log.Debugf("Skipping %s: bad strike %q", row.Symbol, row.StrikePrice)
				continue
			}
			contracts = append(contracts, CallContract{
				Symbol:         row.Symbol,
				Strike:         strike,
				ExpirationDate: row.ExpirationDate,
				ClosePrice:     coerceFloat(row.ClosePrice),
			})
		}

		token, ok := payload.NextPageToken.(string)
		if !ok || token == "" {
			break
		}
		pageToken = token

		// Stay under the Basic plan rate limit while paging
		time.Sleep(BasicPlanDelay)
	}

	logger.Log.Infof("Fetched %d call contracts for %s", len(contracts), symbol)
	return contracts, nil
}

func (c *Client) get(fullURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("APCA-API-KEY-ID", c.APIKey)
	req.Header.Add("APCA-API-SECRET-KEY", c.SecretKey)

	logger.Log.Debugf("Alpaca API call: %s", req.URL.String())
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read alpaca response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca API returned status %d: %s", resp.StatusCode, string(body))
	}

	logger.Log.Debugf("Alpaca API call took %v (%d bytes)", time.Since(start), len(body))
	return body, nil
}

// coerceFloat handles Alpaca fields that arrive as a number, a quoted
// number, or null.
func coerceFloat(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case string:
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return 0
}
