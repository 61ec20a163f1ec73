package ingest

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/uavlogviewer/chatbot/pkg/store"
)

// skipList names message types and sibling collections deliberately
// excluded from ingestion because they are malformed or not useful for
// analytical querying. Part of the contract.
var skipList = map[string]string{
	KeyFile:   "raw file content",
	KeyFences: "geofence definitions without typed fields",
	KeyParams: "parameter key/value dumps with inconsistent row shape",
}

// Ingester materializes a ParsedLog into a pkg/store.Store.
type Ingester struct{}

// New creates an Ingester.
func New() *Ingester {
	return &Ingester{}
}

// Ingest loads every ingestible message type and sibling collection from
// log into s. Per-message-type failures are caught and reported in the
// returned summary; other types still succeed — only a structurally
// invalid ParsedLog returns a non-nil error.
func (ig *Ingester) Ingest(ctx context.Context, s store.Store, log ParsedLog) (*IngestSummary, error) {
	if log == nil {
		return nil, fmt.Errorf("parsed log is nil")
	}

	summary := &IngestSummary{}

	for name, reason := range skipList {
		if _, present := log[name]; present {
			summary.skip(name, reason)
		}
	}

	// Sibling collections supplemented from original_source:
	// trajectories, flightModeChanges, mission, events each become their
	// own table, one row per list entry, no time index.
	siblingTables := []struct {
		key  string
		name string
	}{
		{KeyTrajectories, "trajectories_data"},
		{KeyFlightModeChanges, "flight_mode_changes_data"},
		{KeyMission, "mission_data"},
		{KeyEvents, "events_data"},
	}
	for _, st := range siblingTables {
		raw, present := log[st.key]
		if !present {
			continue
		}
		if err := ig.ingestOne(ctx, s, summary, st.name, raw); err != nil {
			summary.skip(st.key, err.Error())
		} else {
			summary.TablesCreated = append(summary.TablesCreated, st.name)
		}
	}

	for msgType, raw := range log {
		if isSiblingKey(msgType) {
			continue
		}
		if _, skipped := skipList[msgType]; skipped {
			continue
		}
		tableName := store.NormalizeTableName(msgType)
		if err := ig.ingestOne(ctx, s, summary, tableName, raw); err != nil {
			summary.skip(msgType, err.Error())
		} else {
			summary.TablesCreated = append(summary.TablesCreated, tableName)
		}
	}

	sort.Strings(summary.TablesCreated)
	return summary, nil
}

// ingestOne infers, reconciles, and loads a single message type's table.
// Any failure here is isolated to this message type by the caller.
func (ig *Ingester) ingestOne(ctx context.Context, s store.Store, summary *IngestSummary, tableName string, raw any) error {
	switch v := raw.(type) {
	case map[string]any:
		spec, err := buildFromFieldMap(v, summary, tableName)
		if err != nil {
			return err
		}
		return load(ctx, s, spec)
	case []any:
		spec, err := buildFromItemList(v, tableName)
		if err != nil {
			return err
		}
		return load(ctx, s, spec)
	default:
		return fmt.Errorf("unrecognized shape for %q (neither time-series/static map nor list)", tableName)
	}
}

func load(ctx context.Context, s store.Store, spec *tableSpec) error {
	if len(spec.columns) == 0 {
		return fmt.Errorf("no columns inferred")
	}
	if err := s.CreateTable(ctx, spec.name, spec.columns); err != nil {
		return err
	}
	if err := s.BulkInsert(ctx, spec.name, spec.rows); err != nil {
		return err
	}
	return nil
}

// buildFromFieldMap handles the field-map shape: discriminated by the
// presence of FieldTimeBootMs into {TimeSeries, Static}.
func buildFromFieldMap(fields map[string]any, summary *IngestSummary, tableName string) (*tableSpec, error) {
	tb, isTimeSeries := fields[FieldTimeBootMs]
	if isTimeSeries {
		tbMap, ok := tb.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s field is not a keyed map", FieldTimeBootMs)
		}
		return buildTimeSeries(fields, tbMap, summary, tableName)
	}
	return buildStatic(fields, tableName)
}

// buildTimeSeries uses the set of distinct keys of time_boot_ms as the
// canonical row index; every other field is projected onto that index,
// inserting null where the field has no entry at that key.
func buildTimeSeries(fields map[string]any, tbMap map[string]any, summary *IngestSummary, tableName string) (*tableSpec, error) {
	ordinals := sortedOrdinalKeys(tbMap)
	rowCount := len(ordinals)
	if rowCount == 0 {
		return nil, fmt.Errorf("%s has no time keys", FieldTimeBootMs)
	}

	fieldNames := sortedFieldNames(fields)

	type col struct {
		name   string
		typ    store.ColumnType
		values []any
	}
	cols := make([]col, 0, len(fieldNames))

	for _, name := range fieldNames {
		fv, ok := fields[name].(map[string]any)
		if !ok {
			// A scalar sibling inside an otherwise time-series message type
			// cannot be projected onto the time index; drop it and warn
			// instead of failing the whole message type.
			summary.warn("field %q in %s is not time-keyed, dropped", name, tableName)
			continue
		}

		typ := inferColumnType(fv)
		values := make([]any, rowCount)
		for i, ord := range ordinals {
			raw, present := fv[ord]
			if !present || raw == nil {
				values[i] = nil
				continue
			}
			values[i] = coerce(raw, typ)
		}
		cols = append(cols, col{name: name, typ: typ, values: values})
	}

	// Reconciliation: measure materialized lengths (all equal to rowCount by
	// construction here since every column is projected onto the same
	// ordinal index — but guard anyway in case of pathological input).
	modal := rowCount
	for _, c := range cols {
		if len(c.values) != modal {
			summary.warn("column %q length %d diverges from modal length %d in %s, truncating",
				c.name, len(c.values), modal, tableName)
		}
	}

	columns := make([]store.Column, 0, len(cols)+1)
	columns = append(columns, store.Column{Name: FieldTimeBootMs, Type: store.ColumnReal})
	for _, c := range cols {
		columns = append(columns, store.Column{Name: c.name, Type: c.typ})
	}

	rows := make([][]any, modal)
	for i := 0; i < modal; i++ {
		row := make([]any, 0, len(columns))
		tv, err := strconv.ParseFloat(ordinals[i], 64)
		if err != nil {
			tv = 0
		}
		row = append(row, tv)
		for _, c := range cols {
			if i < len(c.values) {
				row = append(row, c.values[i])
			} else {
				row = append(row, nil)
			}
		}
		rows[i] = row
	}

	return &tableSpec{name: tableName, columns: columns, rows: rows}, nil
}

// buildStatic handles a message type with no time_boot_ms: each field holds
// a single scalar, producing exactly one row.
func buildStatic(fields map[string]any, tableName string) (*tableSpec, error) {
	names := sortedFieldNames(fields)
	columns := make([]store.Column, 0, len(names))
	row := make([]any, 0, len(names))

	for _, name := range names {
		v := fields[name]
		typ := scalarColumnType(v)
		columns = append(columns, store.Column{Name: name, Type: typ})
		row = append(row, coerce(v, typ))
	}

	return &tableSpec{name: tableName, columns: columns, rows: [][]any{row}}, nil
}

// buildFromItemList handles sibling collections shaped as a list of
// objects (trajectories, mission, flightModeChanges, events): one row per
// item, columns inferred from the union of keys seen, typed from the first
// non-null sample of each.
func buildFromItemList(items []any, tableName string) (*tableSpec, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty list, nothing to ingest")
	}

	colOrder := []string{}
	colTypes := map[string]store.ColumnType{}
	seen := map[string]bool{}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, name := range sortedFieldNames(obj) {
			if seen[name] {
				continue
			}
			seen[name] = true
			colOrder = append(colOrder, name)
			colTypes[name] = scalarColumnType(obj[name])
		}
	}
	if len(colOrder) == 0 {
		return nil, fmt.Errorf("no typed fields found across list items")
	}

	columns := make([]store.Column, len(colOrder))
	for i, name := range colOrder {
		columns[i] = store.Column{Name: name, Type: colTypes[name]}
	}

	rows := make([][]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := make([]any, len(colOrder))
		for i, name := range colOrder {
			v, present := obj[name]
			if !present || v == nil {
				row[i] = nil
				continue
			}
			row[i] = coerce(v, colTypes[name])
		}
		rows = append(rows, row)
	}

	return &tableSpec{name: tableName, columns: columns, rows: rows}, nil
}

func sortedOrdinalKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		fi, ei := strconv.ParseFloat(keys[i], 64)
		fj, ej := strconv.ParseFloat(keys[j], 64)
		if ei == nil && ej == nil {
			return fi < fj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func sortedFieldNames(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == FieldTimeBootMs {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// inferColumnType determines a time-series field's column type from the
// first observed non-null sample across its ordinal keys.
func inferColumnType(fv map[string]any) store.ColumnType {
	for _, k := range sortedOrdinalKeys(fv) {
		if v := fv[k]; v != nil {
			return scalarColumnType(v)
		}
	}
	return store.ColumnText
}

func scalarColumnType(v any) store.ColumnType {
	switch v.(type) {
	case float64, int, int64, bool:
		return store.ColumnReal
	default:
		return store.ColumnText
	}
}

func coerce(v any, typ store.ColumnType) any {
	if v == nil {
		return nil
	}
	switch typ {
	case store.ColumnReal:
		switch t := v.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		case int64:
			return float64(t)
		case bool:
			if t {
				return 1.0
			}
			return 0.0
		default:
			return nil
		}
	default:
		return fmt.Sprintf("%v", v)
	}
}
