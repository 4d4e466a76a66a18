package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document represents an audited document for data transfer between layers.
type Document struct {
	ID          uuid.UUID `json:"id"`
	SourcePath  string    `json:"source_path"`
	ContentHash string    `json:"content_hash"`
	PageCount   int       `json:"page_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// PageText is one page of pre-extracted document text. Pages are numbered
// from 1 in reading order.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// ROI is a region of interest on a page. Coordinates are normalized to the
// page box, so each component lies in [0,1].
type ROI struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Canonical renders the ROI with fixed precision so the same region always
// hashes identically.
func (r ROI) Canonical() string {
	return fmt.Sprintf("p%d:%.6f,%.6f,%.6f,%.6f", r.Page, r.X, r.Y, r.Width, r.Height)
}

// DateComponents is a parsed calendar date. Components are plain integers;
// ISO renders them zero-padded.
type DateComponents struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// ISO renders the date as YYYY-MM-DD.
func (d DateComponents) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
