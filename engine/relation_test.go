package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// SHAPE COVERAGE
// =============================================================================

func TestResolve_ShapeCoverage(t *testing.T) {
	obj := map[string]any{"id": "abc", "price": 100}
	arr := []any{obj}

	cases := []struct {
		name   string
		raw    any
		id     string
		loaded any
	}{
		{"nil", nil, "", nil},
		{"bare id", "abc", "abc", nil},
		{"object", obj, "abc", obj},
		{"singleton array", arr, "abc", obj},
		{"empty array", []any{}, "", nil},
		{"empty string", "", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := engine.Resolve(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.id, res.ID)
			assert.Equal(t, tc.loaded, res.Loaded)
		})
	}
}

func TestResolve_ArrayTakesFirstElement(t *testing.T) {
	raw := []any{map[string]any{"id": "first"}, map[string]any{"id": "second"}}

	res, err := engine.Resolve(raw)
	require.NoError(t, err)
	assert.Equal(t, "first", res.ID)
}

func TestResolve_NestedArrayRecurses(t *testing.T) {
	res, err := engine.Resolve([]any{[]any{"abc"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ID)
	assert.Nil(t, res.Loaded)
}

func TestResolve_TypedSlicesAndRecords(t *testing.T) {
	res, err := engine.Resolve([]string{"lot-1"})
	require.NoError(t, err)
	assert.Equal(t, "lot-1", res.ID)

	lot := engine.Lot{ID: "lot-2", Price: engine.NewMoney(10)}
	res, err = engine.Resolve([]engine.Lot{lot})
	require.NoError(t, err)
	assert.Equal(t, "lot-2", res.ID)
	assert.Equal(t, lot, res.Loaded)

	res, err = engine.Resolve(&lot)
	require.NoError(t, err)
	assert.Equal(t, "lot-2", res.ID)

	var nilLot *engine.Lot
	res, err = engine.Resolve(nilLot)
	require.NoError(t, err)
	assert.False(t, res.Present())
}

func TestResolve_NumericIdentifier(t *testing.T) {
	var rel engine.Relation
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12345678901234567, "name": "x"}`), &rel))

	res, err := rel.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567", res.ID)

	res, err = engine.Resolve(map[string]any{"id": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", res.ID)
}

// =============================================================================
// MALFORMED SHAPES
// =============================================================================

func TestResolve_MalformedShapes(t *testing.T) {
	cases := []struct {
		name  string
		raw   any
		shape string
	}{
		{"number", 42, "number"},
		{"bool", true, "bool"},
		{"object without id", map[string]any{"name": "Lote 4"}, "object without id"},
		{"object with empty id", map[string]any{"id": ""}, "object without id"},
		{"fractional id", map[string]any{"id": 1.5}, "object without id"},
		{"array of numbers", []any{3}, "number"},
		{"record without id", engine.Lot{Name: "no id"}, "record without id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Resolve(tc.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, engine.ErrMalformedRelation)

			var malformed *engine.MalformedRelationError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tc.shape, malformed.Shape)
			assert.True(t, engine.IsDataContractError(err))
		})
	}
}

func TestResolve_RawMessage(t *testing.T) {
	res, err := engine.Resolve(json.RawMessage(`[{"id":"f-1","folio":"EXP-001"}]`))
	require.NoError(t, err)
	assert.Equal(t, "f-1", res.ID)

	_, err = engine.Resolve(json.RawMessage(`{"id":`))
	assert.ErrorIs(t, err, engine.ErrMalformedRelation)

	res, err = engine.Resolve(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.False(t, res.Present())
}

// =============================================================================
// PURITY AND IDEMPOTENCE
// =============================================================================

func TestResolve_DoesNotMutateInput(t *testing.T) {
	obj := map[string]any{"id": "abc", "price": "100"}
	arr := []any{obj}

	_, err := engine.Resolve(arr)
	require.NoError(t, err)

	assert.Len(t, arr, 1)
	assert.Equal(t, map[string]any{"id": "abc", "price": "100"}, obj)
}

func TestResolve_IdempotentOnLoadedValue(t *testing.T) {
	inputs := []any{
		"abc",
		map[string]any{"id": "abc"},
		[]any{map[string]any{"id": "abc"}},
		engine.Lot{ID: "abc"},
	}

	for _, x := range inputs {
		first, err := engine.Resolve(x)
		require.NoError(t, err)

		next := x
		if first.Loaded != nil {
			next = first.Loaded
		}
		second, err := engine.Resolve(next)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Loaded, second.Loaded)

		again, err := engine.Resolve(first)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// =============================================================================
// WIRE ROUND-TRIP
// =============================================================================

func TestRelation_JSONKeepsWireShape(t *testing.T) {
	for _, wire := range []string{`"lot-1"`, `{"id":"lot-1","price":1000}`, `[{"id":"lot-1"}]`, `null`} {
		var rel engine.Relation
		require.NoError(t, json.Unmarshal([]byte(wire), &rel))

		out, err := json.Marshal(rel)
		require.NoError(t, err)
		assert.JSONEq(t, wire, string(out))
	}
}

func TestRelation_DecodedInsideRecord(t *testing.T) {
	var f engine.File
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "f-1", "folio": "EXP-001",
		"lot": [{"id": "lot-9", "price": "150000.50"}],
		"client": "cli-3"
	}`), &f))

	lot, err := engine.ResolveAs[engine.Lot](f.Lot)
	require.NoError(t, err)
	require.NotNil(t, lot.Loaded)
	assert.Equal(t, "lot-9", lot.Loaded.ID)
	assert.Equal(t, "150000.5", lot.Loaded.Price.Value.String())

	client, err := engine.ResolveAs[engine.Client](f.Client)
	require.NoError(t, err)
	assert.Equal(t, "cli-3", client.ID)
	assert.Nil(t, client.Loaded)
}

// =============================================================================
// SIDE-LOADED JOIN
// =============================================================================

func TestJoin_FallsBackToIndex(t *testing.T) {
	idx := engine.IndexBy([]engine.Lot{
		{ID: "lot-1", Price: engine.NewMoney(1000)},
	})

	ref, err := engine.Join(engine.RelationTo("lot-1"), idx)
	require.NoError(t, err)
	require.NotNil(t, ref.Loaded)
	assert.True(t, ref.Loaded.Price.Value.Equal(engine.NewMoney(1000).Value))

	ref, err = engine.Join(engine.RelationTo("lot-404"), idx)
	assert.ErrorIs(t, err, engine.ErrUnresolvedRelation)
	assert.Equal(t, "lot-404", ref.ID)
	assert.Nil(t, ref.Loaded)

	ref, err = engine.Join(engine.RelationOf(nil), idx)
	require.NoError(t, err)
	assert.False(t, ref.Present())
}

func TestJoin_PrefersNestedEntity(t *testing.T) {
	idx := engine.IndexBy([]engine.Lot{{ID: "lot-1", Price: engine.NewMoney(1)}})
	raw := map[string]any{"id": "lot-1", "price": 999}

	ref, err := engine.Join(raw, idx)
	require.NoError(t, err)
	require.NotNil(t, ref.Loaded)
	assert.Equal(t, "999", ref.Loaded.Price.Value.String())
}
