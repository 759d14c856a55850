// Package analyzer builds class and package dependency graphs from parsed
// class files and computes cycles and layers for both.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/classcycle/internal/graph"
	"github.com/ajitpratap0/classcycle/internal/metrics"
	"github.com/ajitpratap0/classcycle/internal/models"
)

// DefaultTitle is used when Options.Title is empty.
const DefaultTitle = "Dependency analysis"

// Options controls an analysis.
type Options struct {
	Title string

	// SkipExternal drops references to classes that were not scanned.
	SkipExternal bool

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Analyze computes the dependency analysis of the given classes. The input
// is not modified and the result is sorted by name throughout.
func Analyze(classes []models.ClassInfo, opts Options) *models.Analysis {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	byName := make(map[string]*models.ClassInfo, len(classes))
	names := make([]string, 0, len(classes))
	for i := range classes {
		c := &classes[i]
		if _, dup := byName[c.Name]; dup {
			continue
		}
		byName[c.Name] = c
		names = append(names, c.Name)
	}
	sort.Strings(names)

	classGraph := newDigraph(names)
	external := make(map[string]struct{})
	for _, name := range names {
		for _, ref := range byName[name].References {
			if ref == name {
				continue
			}
			if _, ok := byName[ref]; ok {
				classGraph.addInternal(name, ref)
				continue
			}
			if !opts.SkipExternal {
				classGraph.addExternal(name, ref)
				external[ref] = struct{}{}
			}
		}
	}

	classNodes, classCycles := classGraph.solve(models.LevelClass)
	for i := range classNodes {
		c := byName[classNodes[i].Name]
		classNodes[i].Type = c.Type
		classNodes[i].Inner = c.Inner
		classNodes[i].Size = c.Size
	}

	pkgGraph, pkgSizes := packageGraph(names, byName, classGraph)
	pkgNodes, pkgCycles := pkgGraph.solve(models.LevelPackage)
	for i := range pkgNodes {
		pkgNodes[i].Size = pkgSizes[pkgNodes[i].Name]
	}

	return &models.Analysis{
		ID:              uuid.New().String(),
		Title:           title,
		CreatedAt:       now().UTC(),
		Classes:         classNodes,
		ClassCycles:     classCycles,
		Packages:        pkgNodes,
		PackageCycles:   pkgCycles,
		ExternalClasses: sortedKeys(external),
	}
}

// packageGraph collapses the class graph into packages. Package size is the
// number of scanned classes it contains.
func packageGraph(names []string, byName map[string]*models.ClassInfo, classes *digraph) (*digraph, map[string]int) {
	sizes := make(map[string]int)
	for _, name := range names {
		sizes[byName[name].Package()]++
	}
	pkgs := sortedKeys(sizes)

	g := newDigraph(pkgs)
	for _, name := range names {
		from := models.PackageOf(name)
		for _, ref := range classes.internal[name] {
			if to := models.PackageOf(ref); to != from {
				g.addInternal(from, to)
			}
		}
		for _, ref := range classes.external[name] {
			to := models.PackageOf(ref)
			if to == from {
				continue
			}
			if _, scanned := sizes[to]; scanned {
				g.addInternal(from, to)
			} else {
				g.addExternal(from, to)
			}
		}
	}
	return g, sizes
}

// digraph is a dependency graph over sorted node names with separate sets
// of internal and external successors.
type digraph struct {
	nodes    []string
	internal map[string][]string
	external map[string][]string
	usedBy   map[string][]string
	seen     map[[2]string]struct{}
}

func newDigraph(nodes []string) *digraph {
	return &digraph{
		nodes:    nodes,
		internal: make(map[string][]string, len(nodes)),
		external: make(map[string][]string),
		usedBy:   make(map[string][]string, len(nodes)),
		seen:     make(map[[2]string]struct{}),
	}
}

func (g *digraph) addInternal(from, to string) {
	if g.mark(from, to) {
		g.internal[from] = append(g.internal[from], to)
		g.usedBy[to] = append(g.usedBy[to], from)
	}
}

func (g *digraph) addExternal(from, to string) {
	if g.mark(from, to) {
		g.external[from] = append(g.external[from], to)
	}
}

func (g *digraph) mark(from, to string) bool {
	key := [2]string{from, to}
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

func (g *digraph) successors(n string) []string { return g.internal[n] }

// solve computes layers and cycles and returns one Node per graph node.
func (g *digraph) solve(level models.Level) ([]models.Node, []models.Cycle) {
	comps := graph.StrongComponents(g.nodes, g.successors)
	layers := graph.Layers(comps, g.successors)

	cycleOf := make(map[string]string)
	var cycles []models.Cycle
	for _, c := range comps {
		if !graph.Cyclic(c) {
			continue
		}
		cy := models.Cycle{
			Name:    cycleName(c),
			Level:   level,
			Layer:   layers[c[0]],
			Members: c,
		}
		for _, m := range c {
			cycleOf[m] = cy.Name
		}
		cycles = append(cycles, cy)
		metrics.Inc(metrics.CyclesFound)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Name < cycles[j].Name })

	nodes := make([]models.Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = models.Node{
			Name:         n,
			Layer:        layers[n],
			Cycle:        cycleOf[n],
			UsedBy:       sortedCopy(g.usedBy[n]),
			UsesInternal: sortedCopy(g.internal[n]),
			UsesExternal: sortedCopy(g.external[n]),
		}
	}
	return nodes, cycles
}

// cycleName names a cycle after its lexicographically smallest member.
func cycleName(members []string) string {
	return members[0] + " et al."
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Scanner is the part of scanner.Scanner the Runner depends on.
type Scanner interface {
	Scan(ctx context.Context, paths ...string) ([]models.ClassInfo, error)
}

// Runner scans inputs and analyses them in one step.
type Runner struct {
	scanner Scanner
	opts    Options
	logger  *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(sc Scanner, opts Options, logger *slog.Logger) *Runner {
	return &Runner{scanner: sc, opts: opts, logger: logger}
}

// Run scans paths and returns the analysis.
func (r *Runner) Run(ctx context.Context, paths ...string) (*models.Analysis, error) {
	start := time.Now()
	classes, err := r.scanner.Scan(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("analyzer: scanning: %w", err)
	}
	a := Analyze(classes, r.opts)
	metrics.Inc(metrics.AnalysesTotal)
	r.logger.Info("analyzer: analysis complete",
		"id", a.ID,
		"classes", len(a.Classes),
		"packages", len(a.Packages),
		"class_cycles", len(a.ClassCycles),
		"package_cycles", len(a.PackageCycles),
		"elapsed", time.Since(start),
	)
	return a, nil
}
