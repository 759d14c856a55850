package store

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/classcycle/internal/models"
)

func sampleAnalysis() *models.Analysis {
	return &models.Analysis{
		ID:        "run-1",
		Title:     "sample",
		CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Classes: []models.Node{
			{Name: "a.A", Type: models.ClassTypeClass, Size: 120, UsesInternal: []string{"a.B"}, UsesExternal: []string{"java.lang.String"}},
			{Name: "a.B", Type: models.ClassTypeInterface, Size: 80, Layer: 1, UsesInternal: []string{"a.A"}},
		},
		ClassCycles: []models.Cycle{{Name: "a.A et al.", Level: models.LevelClass, Members: []string{"a.A", "a.B"}}},
		Packages: []models.Node{
			{Name: "a", Size: 2, UsesExternal: []string{"java.lang"}},
		},
		ExternalClasses: []string{"java.lang.String"},
	}
}

func TestSaveParams_Run(t *testing.T) {
	p := saveParams(sampleAnalysis())
	assert.Equal(t, "run-1", p.run["run"])
	assert.Equal(t, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), p.run["created_at"])
	sum, ok := p.run["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(2), sum["classes"])
	assert.Equal(t, int64(1), sum["external_classes"])
	assert.Equal(t, int64(1), sum["class_cycles"])
}

func TestSaveParams_CreatedAtOrdersByInstant(t *testing.T) {
	older := sampleAnalysis()
	older.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 120_000_000, time.UTC)
	newer := sampleAnalysis()
	newer.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 123_400_000, time.UTC)

	olderAt, ok := saveParams(older).run["created_at"].(time.Time)
	require.True(t, ok, "created_at must be sent as a native datetime")
	newerAt, ok := saveParams(newer).run["created_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, newerAt.After(olderAt))
}

func TestSaveParams_CyclesSplitByLevel(t *testing.T) {
	a := sampleAnalysis()
	a.PackageCycles = []models.Cycle{{Name: "a et al.", Level: models.LevelPackage, Members: []string{"a", "b"}}}
	p := saveParams(a)

	classCycles := p.classCycles["cycles"].([]any)
	require.Len(t, classCycles, 1)
	assert.Equal(t, "class", classCycles[0].(map[string]any)["level"])

	packageCycles := p.packageCycles["cycles"].([]any)
	require.Len(t, packageCycles, 1)
	assert.Equal(t, "package", packageCycles[0].(map[string]any)["level"])
}

func TestNodeParams_IncludesExternal(t *testing.T) {
	nodes := nodeParams(sampleAnalysis().Classes, true)
	require.Len(t, nodes, 3)

	last, ok := nodes[2].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "java.lang.String", last["name"])
	props := last["props"].(map[string]any)
	assert.Equal(t, true, props["external"])
	assert.Equal(t, string(models.ClassTypeExternal), props["type"])

	first := nodes[0].(map[string]any)["props"].(map[string]any)
	assert.Equal(t, int64(120), first["size"])
	assert.Equal(t, "class", first["type"])
}

func TestNodeParams_PackagesHaveNoType(t *testing.T) {
	nodes := nodeParams(sampleAnalysis().Packages, false)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		props := n.(map[string]any)["props"].(map[string]any)
		_, hasType := props["type"]
		assert.False(t, hasType)
	}
}

func TestEdgeParams(t *testing.T) {
	edges := edgeParams(sampleAnalysis().Classes)
	assert.Equal(t, []any{
		map[string]any{"from": "a.A", "to": "a.B"},
		map[string]any{"from": "a.A", "to": "java.lang.String"},
		map[string]any{"from": "a.B", "to": "a.A"},
	}, edges)

	assert.Equal(t, []any{}, edgeParams(nil))
}

func TestCycleParams(t *testing.T) {
	cycles := cycleParams(sampleAnalysis().ClassCycles)
	require.Len(t, cycles, 1)
	c := cycles[0].(map[string]any)
	assert.Equal(t, "class", c["level"])
	assert.Equal(t, []any{"a.A", "a.B"}, c["members"])
}

func TestSummaryFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys: []string{"id", "title", "created_at", "classes", "packages", "external_classes", "class_cycles", "package_cycles"},
		Values: []any{"run-1", "sample", time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600)),
			int64(10), int64(3), int64(4), int64(2), int64(1)},
	}
	sum, err := summaryFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "run-1", sum.ID)
	assert.Equal(t, 10, sum.Classes)
	assert.Equal(t, 3, sum.Packages)
	assert.Equal(t, 4, sum.ExternalClasses)
	assert.Equal(t, 2, sum.ClassCycles)
	assert.Equal(t, 1, sum.PackageCycles)
	assert.Equal(t, time.Date(2026, 2, 3, 3, 5, 6, 0, time.UTC), sum.CreatedAt)
}

func TestSummaryFromRecord_CreatedAtNotDatetime(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"id", "title", "created_at"},
		Values: []any{"run-1", "sample", "yesterday"},
	}
	_, err := summaryFromRecord(rec)
	require.Error(t, err)
}

func TestCycleFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"name", "layer", "members"},
		Values: []any{"a et al.", int64(2), []any{"a", "b"}},
	}
	c, err := cycleFromRecord(rec, models.LevelPackage)
	require.NoError(t, err)
	assert.Equal(t, models.Cycle{Name: "a et al.", Level: models.LevelPackage, Layer: 2, Members: []string{"a", "b"}}, c)

	rec.Values[2] = []any{"a", int64(1)}
	_, err = cycleFromRecord(rec, models.LevelPackage)
	require.Error(t, err)
}
