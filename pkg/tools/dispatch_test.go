package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavlogviewer/chatbot/pkg/store"
)

func newStoreWithATT(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New()
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(context.Background(), "att_data", []store.Column{
		{Name: "time_boot_ms", Type: store.ColumnReal},
		{Name: "Roll", Type: store.ColumnReal},
	}))
	require.NoError(t, s.BulkInsert(context.Background(), "att_data", [][]any{
		{1000.0, 1.5}, {2000.0, 2.5},
	}))
	return s
}

func TestDispatchQueryDataReturnsOKRows(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolQueryData, `{"sql":"SELECT MAX(Roll) FROM att_data"}`)
	assert.True(t, res.OK)
	assert.Empty(t, res.Message)

	qr, ok := res.Rows.(*store.QueryResult)
	require.True(t, ok)
	assert.Equal(t, 2.5, qr.Rows[0][0].Real)
}

func TestDispatchQueryDataMalformedArgsReturnsError(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolQueryData, `not json`)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Message)
}

func TestDispatchQueryDataMissingSQLReturnsError(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolQueryData, `{}`)
	assert.False(t, res.OK)
}

func TestDispatchQueryDataBadSQLReturnsError(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolQueryData, `{"sql":"SELECT * FROM nope"}`)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Message)
}

func TestDispatchGetMessageTypes(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolGetMessageTypes, `{}`)
	assert.True(t, res.OK)
	names, ok := res.Rows.([]string)
	require.True(t, ok)
	assert.Contains(t, names, "att_data")
}

func TestDispatchGetDataSchema(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, ToolGetDataSchema, `{}`)
	assert.True(t, res.OK)
	schema, ok := res.Rows.(map[string]schemaEntry)
	require.True(t, ok)
	require.Contains(t, schema, "att_data")
	assert.Len(t, schema["att_data"].Columns, 2)
}

func TestDispatchUnknownToolReturnsError(t *testing.T) {
	s := newStoreWithATT(t)
	defer s.Close()

	res := Dispatch(context.Background(), s, "deleteEverything", `{}`)
	assert.False(t, res.OK)
}

func TestResultMarshalsWithDiscriminatingKey(t *testing.T) {
	r := ok([]string{"a"})
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ok":true`)

	r2 := fail("bad")
	raw2, err := json.Marshal(r2)
	require.NoError(t, err)
	assert.Contains(t, string(raw2), `"ok":false`)
}

func TestDefinitionsListsAllThreeTools(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 3)
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	assert.True(t, names[ToolQueryData])
	assert.True(t, names[ToolGetMessageTypes])
	assert.True(t, names[ToolGetDataSchema])
}
