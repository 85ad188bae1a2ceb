package model

import "time"

// SearchResult is one hit returned by a web search provider.
type SearchResult struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// FetchedPage is the plain text retrieved for a URL.
type FetchedPage struct {
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text"`
	ContentType string    `json:"content_type,omitempty"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
}
