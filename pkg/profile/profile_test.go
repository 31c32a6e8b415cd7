package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return &Schema{
		AgentType: "Citizen",
		Fields: []FieldSchema{
			{Name: "score", Type: FieldInt, Default: 0.0},
			{Name: "name", Type: FieldStr, Default: "anon"},
			{Name: "ssn", Type: FieldStr, Default: "", Private: true},
		},
	}
}

func TestNewSeedsDefaultsAndInitial(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{"name": "Alice"})
	assert.Equal(t, "Alice", p.GetData("name", nil))
	assert.Equal(t, 0.0, p.GetData("score", nil))
	assert.NotEmpty(t, p.ID())
}

func TestIDUniquePerProfile(t *testing.T) {
	p1 := New("Citizen", testSchema(), nil)
	p2 := New("Citizen", testSchema(), nil)
	assert.NotEqual(t, p1.ID(), p2.ID())
}

func TestGetDataDottedPath(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{
		"nested": map[string]any{
			"list": []any{
				map[string]any{"c": "deep"},
			},
		},
	})
	assert.Equal(t, "deep", p.GetData("nested.list.0.c", nil))
	assert.Equal(t, "fallback", p.GetData("nested.list.5.c", "fallback"))
	assert.Equal(t, "fallback", p.GetData("does.not.exist", "fallback"))
}

func TestUpdateDataThenGetDataSameHandler(t *testing.T) {
	p := New("Citizen", testSchema(), nil)
	require.True(t, p.UpdateData("score", 42.0))
	assert.Equal(t, 42.0, p.GetData("score", nil))
}

func TestUpdateIfCASSemantics(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{"score": 10.0})

	ok := p.UpdateIf("score",
		func(cur any) bool { return cur.(float64) < 20 },
		func(cur any) any { return cur.(float64) + 1 },
	)
	require.True(t, ok)
	assert.Equal(t, 11.0, p.GetData("score", nil))

	ok = p.UpdateIf("score",
		func(cur any) bool { return cur.(float64) > 100 },
		func(cur any) any { return 999.0 },
	)
	assert.False(t, ok)
	assert.Equal(t, 11.0, p.GetData("score", nil))
}

func TestUpdateIfIdempotentWhenSamePredicateAndUpdater(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{"score": 5.0})
	predicate := func(cur any) bool { return true }
	updater := func(cur any) any { return 7.0 }

	p.UpdateIf("score", predicate, updater)
	first := p.GetData("score", nil)
	p.UpdateIf("score", predicate, updater)
	second := p.GetData("score", nil)

	assert.Equal(t, first, second)
}

func TestSnapshotExcludesPrivateFields(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{"ssn": "123-45-6789", "name": "Bob"})
	snap := p.Snapshot()
	assert.Equal(t, "Bob", snap["name"])
	_, hasSSN := snap["ssn"]
	assert.False(t, hasSSN)
}

func TestRawIncludesPrivateFields(t *testing.T) {
	p := New("Citizen", testSchema(), map[string]any{"ssn": "123-45-6789"})
	raw := p.Raw()
	assert.Equal(t, "123-45-6789", raw["ssn"])
}
