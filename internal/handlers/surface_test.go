package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jwaldner/ivsurface/internal/alpaca"
	"github.com/jwaldner/ivsurface/internal/models"
	"github.com/jwaldner/ivsurface/internal/pricing"
	"github.com/jwaldner/ivsurface/internal/surface"
)

type stubMarket struct {
	price     float64
	priceErr  error
	contracts []alpaca.CallContract
	chainErr  error
}

func (s *stubMarket) GetStockPrice(symbol string) (float64, error) {
	return s.price, s.priceErr
}

func (s *stubMarket) GetCallContracts(symbol string) ([]alpaca.CallContract, error) {
	return s.contracts, s.chainErr
}

type stubRates struct{ rate float64 }

func (s *stubRates) Rate() float64 { return s.rate }
func (s *stubRates) CacheInfo() (float64, time.Duration, bool) {
	return s.rate, 0, true
}

// fixedToday pins the handler clock so expiry math is reproducible.
var fixedToday = time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

func newTestHandler(market *stubMarket, rate float64) *SurfaceHandler {
	h := NewSurfaceHandler(market, &stubRates{rate: rate}, surface.NewBuilder(4, 0, 2))
	h.now = func() time.Time { return fixedToday }
	return h
}

// chainContract prices a contract at a known volatility, expiring the given
// number of days after fixedToday.
func chainContract(spot, strike, rate, vol float64, daysOut int) alpaca.CallContract {
	expiry := fixedToday.AddDate(0, 0, daysOut)
	tte := float64(daysOut) / 365.0
	return alpaca.CallContract{
		Symbol:         fmt.Sprintf("TEST%s", expiry.Format("060102")),
		Strike:         strike,
		ExpirationDate: expiry.Format("2006-01-02"),
		ClosePrice:     pricing.CallPrice(spot, strike, tte, rate, vol),
	}
}

func TestSurfaceJSONHandler(t *testing.T) {
	const (
		spot = 100.0
		rate = 0.0285
	)
	market := &stubMarket{
		price: spot,
		contracts: []alpaca.CallContract{
			chainContract(spot, 95, rate, 0.25, 30),
			chainContract(spot, 100, rate, 0.22, 30),
			chainContract(spot, 105, rate, 0.28, 90),
			{Symbol: "EXPIRED", Strike: 100, ExpirationDate: "2026-08-28", ClosePrice: 5},
		},
	}
	h := newTestHandler(market, rate)

	req := httptest.NewRequest("GET", "/api/surface?symbol=TEST", nil)
	rec := httptest.NewRecorder()
	h.SurfaceJSONHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp models.SurfaceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !resp.Success || resp.Symbol != "TEST" || resp.Spot != spot {
		t.Errorf("response header wrong: %+v", resp)
	}
	if resp.AsOf != "2026-08-28" {
		t.Errorf("as_of = %q, want 2026-08-28", resp.AsOf)
	}
	if len(resp.Points) != 3 {
		t.Fatalf("got %d points, want 3 (meta: %+v)", len(resp.Points), resp.Meta)
	}
	if resp.Meta.Expirations != 2 {
		t.Errorf("expirations = %d, want 2", resp.Meta.Expirations)
	}

	// First point is the nearest expiry, lowest moneyness: the 95 strike.
	p := resp.Points[0]
	if math.Abs(p.Moneyness-0.95) > 1e-12 {
		t.Errorf("first point moneyness = %f, want 0.95", p.Moneyness)
	}
	if math.Abs(p.ImpliedVol-0.25) > 1e-4 {
		t.Errorf("recovered vol = %f, want 0.25", p.ImpliedVol)
	}
}

func TestSurfaceJSONHandlerRequiresSymbol(t *testing.T) {
	h := newTestHandler(&stubMarket{}, 0.03)

	rec := httptest.NewRecorder()
	h.SurfaceJSONHandler(rec, httptest.NewRequest("GET", "/api/surface", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSurfaceJSONHandlerUpstreamFailure(t *testing.T) {
	h := newTestHandler(&stubMarket{priceErr: fmt.Errorf("rate limited")}, 0.03)

	rec := httptest.NewRecorder()
	h.SurfaceJSONHandler(rec, httptest.NewRequest("GET", "/api/surface?symbol=TEST", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("error body wrong: %+v", resp)
	}
}

func TestSurfaceJSONHandlerEmptyChain(t *testing.T) {
	h := newTestHandler(&stubMarket{price: 100}, 0.03)

	rec := httptest.NewRecorder()
	h.SurfaceJSONHandler(rec, httptest.NewRequest("GET", "/api/surface?symbol=TEST", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSurfaceCSVHandler(t *testing.T) {
	const (
		spot = 100.0
		rate = 0.0285
	)
	market := &stubMarket{
		price: spot,
		contracts: []alpaca.CallContract{
			chainContract(spot, 100, rate, 0.20, 30),
		},
	}
	h := newTestHandler(market, rate)

	rec := httptest.NewRecorder()
	h.SurfaceCSVHandler(rec, httptest.NewRequest("GET", "/api/surface/csv?symbol=TEST", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("content type = %q", got)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d CSV lines, want header plus 1 row: %q", len(lines), rec.Body.String())
	}
	if lines[0] != "moneyness,time_to_expiry,implied_volatility" {
		t.Errorf("header = %q", lines[0])
	}
}

func TestHomeHandler(t *testing.T) {
	h := newTestHandler(&stubMarket{}, 0.0285)

	rec := httptest.NewRecorder()
	h.HomeHandler(rec, httptest.NewRequest("GET", "/", nil))

	var resp models.InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Service != "ivsurface" {
		t.Errorf("service = %q", resp.Service)
	}
	if resp.RiskFreeRate != 0.0285 {
		t.Errorf("rate = %v", resp.RiskFreeRate)
	}
	if resp.GuessCount != 58 {
		t.Errorf("solver guesses = %d, want 58", resp.GuessCount)
	}
}

func TestTestConnectionHandler(t *testing.T) {
	h := newTestHandler(&stubMarket{price: 412.5}, 0.03)

	rec := httptest.NewRecorder()
	h.TestConnectionHandler(rec, httptest.NewRequest("GET", "/api/test-connection", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "412.5") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
