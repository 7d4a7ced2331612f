// Package export writes surface points in formats downstream tooling
// (plotting notebooks, spreadsheets) can ingest.
package export

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/jwaldner/ivsurface/internal/surface"
)

// WriteCSV writes surface points as CSV with a header row, in the order
// given.
func WriteCSV(w io.Writer, points []surface.Point) error {
	return gocsv.Marshal(&points, w)
}
