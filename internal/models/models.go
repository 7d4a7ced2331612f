package models

import "github.com/jwaldner/ivsurface/internal/surface"

// SurfaceResponse is the JSON body for a successful surface build.
type SurfaceResponse struct {
	Success      bool             `json:"success"`
	Symbol       string           `json:"symbol"`
	Spot         float64          `json:"spot"`
	RiskFreeRate float64          `json:"risk_free_rate"`
	AsOf         string           `json:"as_of"` // YYYY-MM-DD date the expiries were measured against
	Points       []surface.Point  `json:"points"`
	Meta         ResponseMetadata `json:"meta"`
}

// ResponseMetadata carries processing bookkeeping for the UI and logs.
type ResponseMetadata struct {
	ProcessingTime float64 `json:"processing_time"` // seconds
	QuoteCount     int     `json:"quote_count"`
	PointCount     int     `json:"point_count"`
	FailedCount    int     `json:"failed_count"`  // solver exhausted
	SkippedCount   int     `json:"skipped_count"` // expired or outside moneyness bounds
	Expirations    int     `json:"expirations"`
}

// ErrorResponse is the JSON body for any failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// InfoResponse describes the running service on the root endpoint.
type InfoResponse struct {
	Service      string  `json:"service"`
	RiskFreeRate float64 `json:"risk_free_rate"`
	RateFetched  bool    `json:"rate_fetched"`
	GuessCount   int     `json:"solver_guesses"`
}
