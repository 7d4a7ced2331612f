package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jwaldner/ivsurface/internal/alpaca"
	"github.com/jwaldner/ivsurface/internal/export"
	"github.com/jwaldner/ivsurface/internal/logger"
	"github.com/jwaldner/ivsurface/internal/models"
	"github.com/jwaldner/ivsurface/internal/pricing"
	"github.com/jwaldner/ivsurface/internal/surface"
)

// RateSource supplies the current risk-free rate; the treasury client
// implements it.
type RateSource interface {
	Rate() float64
	CacheInfo() (rate float64, age time.Duration, fetched bool)
}

// SurfaceHandler wires market data, the risk-free rate and the surface
// builder behind the HTTP endpoints. The handler owns no solver state of
// its own; the date and rate are resolved per request and passed down
// explicitly.
type SurfaceHandler struct {
	alpacaClient alpaca.AlpacaInterface
	rates        RateSource
	builder      *surface.Builder
	now          func() time.Time
}

func NewSurfaceHandler(alpacaClient alpaca.AlpacaInterface, rates RateSource, builder *surface.Builder) *SurfaceHandler {
	return &SurfaceHandler{
		alpacaClient: alpacaClient,
		rates:        rates,
		builder:      builder,
		now:          time.Now,
	}
}

// HomeHandler reports what the service is and which rate it is using.
func (h *SurfaceHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	rate, _, fetched := h.rates.CacheInfo()
	writeJSON(w, http.StatusOK, models.InfoResponse{
		Service:      "ivsurface",
		RiskFreeRate: rate,
		RateFetched:  fetched,
		GuessCount:   len(pricing.DefaultGuesses()),
	})
}

// SurfaceJSONHandler builds the implied volatility surface for ?symbol=X.
func (h *SurfaceHandler) SurfaceJSONHandler(w http.ResponseWriter, r *http.Request) {
	resp, status, err := h.buildSurface(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SurfaceCSVHandler is SurfaceJSONHandler with a CSV body, for plotting
// tools that want a flat file.
func (h *SurfaceHandler) SurfaceCSVHandler(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	resp, status, err := h.buildSurface(symbol)
	if err != nil {
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_%s_iv.csv", resp.Symbol, resp.AsOf))
	if err := export.WriteCSV(w, resp.Points); err != nil {
		logger.Log.Errorf("CSV export for %s failed: %v", symbol, err)
	}
}

// TestConnectionHandler verifies market data access with a single cheap
// price lookup.
func (h *SurfaceHandler) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = "SPY"
	}

	price, err := h.alpacaClient.GetStockPrice(symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("market data check failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"symbol":  symbol,
		"price":   price,
	})
}

func (h *SurfaceHandler) buildSurface(symbol string) (*models.SurfaceResponse, int, error) {
	if symbol == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("symbol parameter is required")
	}

	start := h.now()
	today := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	spot, err := h.alpacaClient.GetStockPrice(symbol)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("failed to fetch spot price: %w", err)
	}

	contracts, err := h.alpacaClient.GetCallContracts(symbol)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("failed to fetch option chain: %w", err)
	}
	if len(contracts) == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("no call contracts for %s", symbol)
	}

	quotes, expirations := quotesFromContracts(contracts, today)
	rate := h.rates.Rate()

	result := h.builder.Build(spot, rate, quotes)

	logger.Log.Infof("Surface %s: %d quotes -> %d points (%d failed, %d skipped) in %v",
		symbol, result.Quotes, len(result.Points), result.Failed, result.Skipped, time.Since(start))

	return &models.SurfaceResponse{
		Success:      true,
		Symbol:       symbol,
		Spot:         spot,
		RiskFreeRate: rate,
		AsOf:         today.Format("2006-01-02"),
		Points:       result.Points,
		Meta: models.ResponseMetadata{
			ProcessingTime: time.Since(start).Seconds(),
			QuoteCount:     result.Quotes,
			PointCount:     len(result.Points),
			FailedCount:    result.Failed,
			SkippedCount:   result.Skipped,
			Expirations:    expirations,
		},
	}, http.StatusOK, nil
}

// quotesFromContracts converts chain rows into solver inputs, resolving
// each expiration date against the given day. Contracts expiring today or
// earlier are dropped here; the pricing core never sees T <= 0.
func quotesFromContracts(contracts []alpaca.CallContract, today time.Time) ([]surface.Quote, int) {
	quotes := make([]surface.Quote, 0, len(contracts))
	seen := make(map[string]bool)

	for _, contract := range contracts {
		expiry, err := time.Parse("2006-01-02", contract.ExpirationDate)
		if err != nil {
			logger.Log.Debugf("Skipping %s: bad expiration %q", contract.Symbol, contract.ExpirationDate)
			continue
		}
		days := expiry.Sub(today).Hours() / 24
		if days <= 0 {
			continue
		}

		quotes = append(quotes, surface.Quote{
			Strike:        contract.Strike,
			ObservedPrice: contract.ClosePrice,
			TimeToExpiry:  days / 365.0,
		})
		seen[contract.ExpirationDate] = true
	}

	return quotes, len(seen)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger.Log.Warnf("Request failed (%d): %v", status, err)
	writeJSON(w, status, models.ErrorResponse{Success: false, Error: err.Error()})
}
