package dto

import "time"

// NewsItem is a headline used as supporting text for the oracle.
type NewsItem struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Source      string     `json:"source"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
