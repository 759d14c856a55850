package analyzer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func sampleClasses() []models.ClassInfo {
	return []models.ClassInfo{
		{Name: "b.B", Type: models.ClassTypeClass, Size: 200, References: []string{"a.A", "c.C"}},
		{Name: "a.A", Type: models.ClassTypeInterface, Size: 100, References: []string{"b.B", "java.lang.Object"}},
		{Name: "c.C", Type: models.ClassTypeAbstractClass, Size: 300, References: []string{"java.util.List"}},
		{Name: "c.D", Type: models.ClassTypeClass, Size: 50, Inner: false, References: []string{"c.C", "c.D"}},
	}
}

func nodeByName(t *testing.T, nodes []models.Node, name string) models.Node {
	t.Helper()
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found", name)
	return models.Node{}
}

func TestAnalyze_ClassGraph(t *testing.T) {
	a := analyzer.Analyze(sampleClasses(), analyzer.Options{Now: func() time.Time { return fixedNow }})

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.Equal(t, analyzer.DefaultTitle, a.Title)
	assert.Equal(t, fixedNow.UTC(), a.CreatedAt)

	require.Len(t, a.Classes, 4)
	assert.Equal(t, "a.A", a.Classes[0].Name)

	require.Len(t, a.ClassCycles, 1)
	assert.Equal(t, models.Cycle{
		Name:    "a.A et al.",
		Level:   models.LevelClass,
		Layer:   1,
		Members: []string{"a.A", "b.B"},
	}, a.ClassCycles[0])

	aa := nodeByName(t, a.Classes, "a.A")
	assert.Equal(t, models.ClassTypeInterface, aa.Type)
	assert.Equal(t, 100, aa.Size)
	assert.Equal(t, "a.A et al.", aa.Cycle)
	assert.Equal(t, []string{"b.B"}, aa.UsedBy)
	assert.Equal(t, []string{"b.B"}, aa.UsesInternal)
	assert.Equal(t, []string{"java.lang.Object"}, aa.UsesExternal)
	assert.Equal(t, 1, aa.Layer)

	cc := nodeByName(t, a.Classes, "c.C")
	assert.Equal(t, 0, cc.Layer)
	assert.Empty(t, cc.Cycle)
	assert.Equal(t, []string{"b.B", "c.D"}, cc.UsedBy)

	cd := nodeByName(t, a.Classes, "c.D")
	assert.Equal(t, 1, cd.Layer)
	assert.Equal(t, []string{"c.C"}, cd.UsesInternal, "self reference must be ignored")

	assert.Equal(t, []string{"java.lang.Object", "java.util.List"}, a.ExternalClasses)
}

func TestAnalyze_PackageGraph(t *testing.T) {
	a := analyzer.Analyze(sampleClasses(), analyzer.Options{Title: "demo"})
	assert.Equal(t, "demo", a.Title)

	require.Len(t, a.Packages, 3)
	require.Len(t, a.PackageCycles, 1)
	assert.Equal(t, []string{"a", "b"}, a.PackageCycles[0].Members)
	assert.Equal(t, "a et al.", a.PackageCycles[0].Name)
	assert.Equal(t, models.LevelPackage, a.PackageCycles[0].Level)

	c := nodeByName(t, a.Packages, "c")
	assert.Equal(t, 2, c.Size)
	assert.Equal(t, 0, c.Layer)
	assert.Equal(t, []string{"b"}, c.UsedBy)
	assert.Equal(t, []string{"java.util"}, c.UsesExternal)
	assert.Empty(t, c.UsesInternal, "intra-package references are not package edges")

	pa := nodeByName(t, a.Packages, "a")
	assert.Equal(t, []string{"java.lang"}, pa.UsesExternal)
	assert.Equal(t, 1, pa.Layer)
}

func TestAnalyze_SkipExternal(t *testing.T) {
	a := analyzer.Analyze(sampleClasses(), analyzer.Options{SkipExternal: true})
	assert.Empty(t, a.ExternalClasses)
	for _, n := range a.Classes {
		assert.Empty(t, n.UsesExternal, n.Name)
	}
	for _, n := range a.Packages {
		assert.Empty(t, n.UsesExternal, n.Name)
	}
}

func TestAnalyze_DefaultPackageAndNoCycles(t *testing.T) {
	a := analyzer.Analyze([]models.ClassInfo{
		{Name: "Main", References: []string{"a.A"}},
		{Name: "a.A"},
	}, analyzer.Options{})

	assert.Empty(t, a.ClassCycles)
	assert.Empty(t, a.PackageCycles)
	main := nodeByName(t, a.Packages, models.DefaultPackage)
	assert.Equal(t, []string{"a"}, main.UsesInternal)
	assert.Equal(t, 1, main.Layer)
}

func TestAnalyze_Empty(t *testing.T) {
	a := analyzer.Analyze(nil, analyzer.Options{})
	assert.Empty(t, a.Classes)
	assert.Empty(t, a.Packages)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 0, a.Summary().Classes)
}

type fakeScanner struct {
	classes []models.ClassInfo
	err     error
	paths   []string
}

func (f *fakeScanner) Scan(_ context.Context, paths ...string) ([]models.ClassInfo, error) {
	f.paths = paths
	return f.classes, f.err
}

func TestRunner_Run(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc := &fakeScanner{classes: sampleClasses()}
	r := analyzer.NewRunner(sc, analyzer.Options{Title: "run"}, logger)

	a, err := r.Run(context.Background(), "build/classes")
	require.NoError(t, err)
	assert.Equal(t, []string{"build/classes"}, sc.paths)
	assert.Equal(t, "run", a.Title)
	assert.Equal(t, 1, a.Summary().ClassCycles)

	sc.err = errors.New("boom")
	_, err = r.Run(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
