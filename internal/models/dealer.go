package models

import "time"

// Dealer program statuses as used by the marketing pipeline
const (
	ProgramStatusFull    = "FULL"
	ProgramStatusPartial = "PARTIAL"
	ProgramStatusPaused  = "PAUSED"
)

// Dealer is a dealer record as consumed by the render pipeline. The full
// dealer store lives outside this service; only the fields the renderer
// substitutions and Drive layout need are kept here.
type Dealer struct {
	DealerNo      string    `json:"dealer_no" badgerhold:"key"`
	DisplayName   string    `json:"display_name"`
	Phone         string    `json:"phone"`    // Formatted for the Creatomate phone field
	Website       string    `json:"website"`  // Display form, no scheme
	LogoURL       string    `json:"logo_url"` // Public URL Creatomate can fetch
	ProgramStatus string    `json:"program_status" badgerholdIndex:"ProgramStatus"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RenderReady reports whether the dealer has every field a render needs.
// Dealers missing any of these are skipped at batch creation rather than
// producing jobs that will always fail at the provider.
func (d *Dealer) RenderReady() bool {
	return d.DisplayName != "" && d.Phone != "" && d.LogoURL != ""
}
