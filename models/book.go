// Package models defines data structures for the availability checker.
package models

import "time"

// Status is the availability classification written to the Availability column.
type Status string

const (
	StatusAvailable    Status = "Available"
	StatusNotAvailable Status = "Not Available"
	StatusError        Status = "Error"
)

// NoValidInput is the Search_URL placeholder for rows that yield no query.
const NoValidInput = "No valid input"

// BookRequest is one spreadsheet row to verify.
type BookRequest struct {
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	PublicationDate string `json:"publication_date,omitempty"`
}

// QueryPlan holds the search term chosen for a request and the encoded search URL.
type QueryPlan struct {
	Query     string
	SearchURL string
}

// Result is the classification of a single BookRequest.
type Result struct {
	Status     Status `json:"availability"`
	SearchURL  string `json:"search_url"`
	FinalURL   string `json:"final_url"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Record pairs a source row with its classification.
type Record struct {
	RunID   string      `json:"run_id"`
	Row     int         `json:"row"`
	Fields  []string    `json:"-"`
	Request BookRequest `json:"request"`
	Result  Result      `json:"result"`
}

// BatchResult summarises one run over an input table.
type BatchResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Total        int
	Processed    int
	ByStatus     map[Status]int
	ErrorsByType map[string]int
	Cancelled    bool
}
