package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uavlogviewer/chatbot/pkg/llm"
	"github.com/uavlogviewer/chatbot/pkg/store"
)

// queryDataArgs is the expected shape of queryData's JSON arguments.
type queryDataArgs struct {
	SQL string `json:"sql"`
}

// Dispatch runs the named tool against s and returns its tagged-variant
// result. Malformed JSON in argsJSON is never a Go error: it is converted
// into a failed Result carrying a message, so the caller (C9) can feed it
// back to the model as a tool message and give it a chance to recover.
func Dispatch(ctx context.Context, s store.Store, toolName, argsJSON string) Result {
	switch toolName {
	case ToolQueryData:
		return dispatchQueryData(ctx, s, argsJSON)
	case ToolGetMessageTypes:
		return dispatchGetMessageTypes(ctx, s)
	case ToolGetDataSchema:
		return dispatchGetDataSchema(ctx, s)
	default:
		return fail(fmt.Sprintf("unknown tool %q", toolName))
	}
}

func dispatchQueryData(ctx context.Context, s store.Store, argsJSON string) Result {
	var args queryDataArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		wrapped := &llm.MalformedToolArgsError{ToolName: ToolQueryData, Raw: argsJSON, Cause: err}
		return fail(wrapped.Error())
	}
	if args.SQL == "" {
		return fail("sql argument is required and must be non-empty")
	}

	result, err := s.Query(ctx, args.SQL)
	if err != nil {
		return fail(err.Error())
	}
	return ok(result)
}

func dispatchGetMessageTypes(ctx context.Context, s store.Store) Result {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return fail(err.Error())
	}
	return ok(tables)
}

func dispatchGetDataSchema(ctx context.Context, s store.Store) Result {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return fail(err.Error())
	}

	schema := make(map[string]schemaEntry, len(tables))
	for _, name := range tables {
		cols, err := s.Describe(ctx, name)
		if err != nil {
			continue
		}
		scols := make([]schemaColumn, len(cols))
		for i, c := range cols {
			scols[i] = schemaColumn{Name: c.Name, Type: c.Type}
		}
		schema[name] = schemaEntry{Table: name, Columns: scols}
	}
	return ok(schema)
}

// Definitions returns the three ToolDefinition values advertised to the
// model, for use by C9 when building the chat request.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolQueryData,
			Description: "Run a read-only SQL query against the ingested flight log tables and return the result rows.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sql": map[string]any{"type": "string", "description": "A read-only SELECT statement."},
				},
				"required": []string{"sql"},
			},
		},
		{
			Name:        ToolGetMessageTypes,
			Description: "List the message types (tables) available for this flight log.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolGetDataSchema,
			Description: "Return the full schema (table name and typed columns) for every ingested message type.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}
