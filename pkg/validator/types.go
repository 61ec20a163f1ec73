// Package validator is the Query Validator (C7): it scans an
// assistant's final text for SQL-shaped substrings, re-executes each one,
// extracts numeric claims adjacent to it, and flags discrepancies.
package validator

import "github.com/uavlogviewer/chatbot/pkg/store"

// Validation is one re-executed query's outcome.
type Validation struct {
	ExtractedSQL    string       `json:"extractedSql"`
	ClaimedNumbers  []float64    `json:"claimedNumbers"`
	ActualResult    *store.QueryResult `json:"actualResult,omitempty"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	QueryError      string       `json:"queryError,omitempty"`
}

// Discrepancy records one claimed number that didn't match any actual cell
// within tolerance.
type Discrepancy struct {
	Claimed float64 `json:"claimed"`
	Closest float64 `json:"closest"`
}

// Report is the full output of a Validate call.
type Report struct {
	TotalQueries             int          `json:"totalQueries"`
	ValidQueries             int          `json:"validQueries"`
	QueriesWithDiscrepancies int          `json:"queriesWithDiscrepancies"`
	Validations              []Validation `json:"validations"`
}
