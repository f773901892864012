package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout is fixed width so string order equals chronological order.
// Every backend formats in UTC with this layout; changing it breaks xlsx ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// SheetName names the worksheet holding pases, on disk and in exports.
const SheetName = "Pases"

// Header is the column order of the pases sheet and of the export.
var Header = []string{"timestamp", "para", "pases", "id", "link", "user"}

// PassRecord is one issuance event in the ledger. Never mutated once stored.
type PassRecord struct {
	Timestamp string `json:"timestamp"`                     // server assigned, TimestampLayout
	Para      string `json:"para" validate:"required,cell"` // recipient
	Pases     int    `json:"pases" validate:"gte=1"`        // pass count
	ID        string `json:"id" validate:"required,cell"`   // reference id
	Link      string `json:"link" validate:"required,cell"` // not checked as URL
	User      string `json:"user" validate:"cell"`          // optional issuer
}

// PassInput is the POST /api/pases body before validation.
// Pases is kept raw because clients send it as a number or a string.
type PassInput struct {
	Para  string          `json:"para"`
	Pases json.RawMessage `json:"pases"`
	ID    string          `json:"id"`
	Link  string          `json:"link"`
	User  string          `json:"user"`
}

// FormatTimestamp renders t with TimestampLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
