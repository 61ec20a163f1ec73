// Package ingest turns a Parsed Log into tables in a
// pkg/store.Store, inferring per-message-type schema and reconciling
// sparse, ragged telemetry into rectangular tables.
package ingest

import (
	"fmt"

	"github.com/uavlogviewer/chatbot/pkg/store"
)

// ParsedLog is the untyped input document: a nested mapping from message
// type (or one of the reserved sibling collection keys below) to its
// per-field data. It is intentionally loosely typed (map[string]any,
// decoded straight from the client's JSON body) because message types are
// not known ahead of time — this is the duck-typed log input design.Notes
// call for.
type ParsedLog map[string]any

// Reserved top-level keys that are not message types.
const (
	KeyTrajectories       = "trajectories"
	KeyParams             = "params"
	KeyEvents             = "events"
	KeyFlightModeChanges  = "flightModeChanges"
	KeyMission            = "mission"
	KeyFences             = "fences"
	KeyFile               = "file"
	KeyLogType            = "logType"
	FieldTimeBootMs       = "time_boot_ms"
	ParamsValuesFieldName = "values"
)

func isSiblingKey(k string) bool {
	switch k {
	case KeyTrajectories, KeyParams, KeyEvents, KeyFlightModeChanges,
		KeyMission, KeyFences, KeyFile, KeyLogType:
		return true
	default:
		return false
	}
}

// SkippedType records why a message type or sibling collection was not
// ingested. The skip list is part of the contract.
type SkippedType struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IngestSummary is returned alongside session creation so a caller can see
// which message types were dropped and why, without reading logs.
type IngestSummary struct {
	TablesCreated []string      `json:"tablesCreated"`
	Skipped       []SkippedType `json:"skipped"`
	Warnings      []string      `json:"warnings"`
}

func (s *IngestSummary) skip(name, reason string) {
	s.Skipped = append(s.Skipped, SkippedType{Name: name, Reason: reason})
}

func (s *IngestSummary) warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// tableSpec is the reconciled, rectangular shape ready for store.CreateTable.
type tableSpec struct {
	name    string
	columns []store.Column
	rows    [][]any
}
