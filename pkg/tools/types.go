// Package tools is the Tool Runtime (C5): it dispatches the
// three tools the model may call (queryData, getMessageTypes, getDataSchema)
// against a session's Tabular Store.
package tools

import "github.com/uavlogviewer/chatbot/pkg/store"

// Tool names exposed to the model.
const (
	ToolQueryData       = "queryData"
	ToolGetMessageTypes = "getMessageTypes"
	ToolGetDataSchema   = "getDataSchema"
)

// Result is the tagged variant every tool returns: {ok: true, rows} |
// {ok: false, message}. The model always sees a JSON object carrying a
// discriminating "ok" key so an empty result set is never confused with a
// failure.
type Result struct {
	OK      bool   `json:"ok"`
	Rows    any    `json:"rows,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(rows any) Result       { return Result{OK: true, Rows: rows} }
func fail(message string) Result { return Result{OK: false, Message: message} }

// schemaColumn is one column entry in the getDataSchema response.
type schemaColumn struct {
	Name string           `json:"name"`
	Type store.ColumnType `json:"type"`
}

// schemaEntry is the per-table value of the getDataSchema map: {table,
// [{name,type}]}.
type schemaEntry struct {
	Table   string         `json:"table"`
	Columns []schemaColumn `json:"columns"`
}
