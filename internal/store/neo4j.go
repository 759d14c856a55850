package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/classcycle/internal/models"
)

const (
	neo4jConnectTimeout = 10 * time.Second
	neo4jReadTimeout    = 10 * time.Second
	neo4jWriteTimeout   = 60 * time.Second
	neo4jCloseTimeout   = 5 * time.Second
)

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// Neo4jStore implements Store on a Neo4j graph database. Every node carries
// the run id so several analyses can coexist in one database.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating Neo4j driver for %s: %w", uri, err)
	}

	vctx, cancel := withTimeout(ctx, neo4jConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("verifying Neo4j connection at %s: %w", uri, err)
	}

	logger.Debug("neo4j: connected", "uri", uri, "database", database)
	return &Neo4jStore{driver: driver, database: database, logger: logger}, nil
}

var schemaStatements = []string{
	"CREATE CONSTRAINT classcycle_run_id IF NOT EXISTS FOR (r:Run) REQUIRE r.id IS UNIQUE",
	"CREATE CONSTRAINT classcycle_class_key IF NOT EXISTS FOR (c:Class) REQUIRE (c.run, c.name) IS UNIQUE",
	"CREATE CONSTRAINT classcycle_package_key IF NOT EXISTS FOR (p:Package) REQUIRE (p.run, p.name) IS UNIQUE",
	"CREATE CONSTRAINT classcycle_cycle_key IF NOT EXISTS FOR (k:Cycle) REQUIRE (k.run, k.level, k.name) IS UNIQUE",
}

// EnsureSchema creates the uniqueness constraints used by SaveAnalysis.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		cctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
		_, err := neo4j.ExecuteQuery(cctx, s.driver, stmt, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
		)
		cancel()
		if err != nil {
			return fmt.Errorf("neo4j: ensuring schema: %w", err)
		}
	}
	return nil
}

const (
	saveRunQuery = `
MERGE (r:Run {id: $run})
SET r.title = $title,
    r.created_at = $created_at,
    r.classes = $summary.classes,
    r.packages = $summary.packages,
    r.external_classes = $summary.external_classes,
    r.class_cycles = $summary.class_cycles,
    r.package_cycles = $summary.package_cycles`

	saveClassesQuery = `
MATCH (r:Run {id: $run})
UNWIND $nodes AS n
MERGE (c:Class {run: $run, name: n.name})
SET c += n.props
MERGE (r)-[:CONTAINS]->(c)`

	savePackagesQuery = `
MATCH (r:Run {id: $run})
UNWIND $nodes AS n
MERGE (p:Package {run: $run, name: n.name})
SET p += n.props
MERGE (r)-[:CONTAINS]->(p)`

	saveClassEdgesQuery = `
UNWIND $edges AS e
MATCH (a:Class {run: $run, name: e.from})
MATCH (b:Class {run: $run, name: e.to})
MERGE (a)-[:DEPENDS_ON]->(b)`

	savePackageEdgesQuery = `
UNWIND $edges AS e
MATCH (a:Package {run: $run, name: e.from})
MATCH (b:Package {run: $run, name: e.to})
MERGE (a)-[:DEPENDS_ON]->(b)`

	saveClassCyclesQuery = `
MATCH (r:Run {id: $run})
UNWIND $cycles AS cy
MERGE (k:Cycle {run: $run, level: cy.level, name: cy.name})
SET k.layer = cy.layer, k.size = size(cy.members)
MERGE (r)-[:HAS_CYCLE]->(k)
WITH k, cy
UNWIND cy.members AS member
MATCH (n:Class {run: $run, name: member})
MERGE (n)-[:IN_CYCLE]->(k)`

	savePackageCyclesQuery = `
MATCH (r:Run {id: $run})
UNWIND $cycles AS cy
MERGE (k:Cycle {run: $run, level: cy.level, name: cy.name})
SET k.layer = cy.layer, k.size = size(cy.members)
MERGE (r)-[:HAS_CYCLE]->(k)
WITH k, cy
UNWIND cy.members AS member
MATCH (n:Package {run: $run, name: member})
MERGE (n)-[:IN_CYCLE]->(k)`
)

// SaveAnalysis writes the analysis in a single write transaction.
func (s *Neo4jStore) SaveAnalysis(ctx context.Context, a *models.Analysis) error {
	params := saveParams(a)

	cctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
	defer cancel()

	session := s.driver.NewSession(cctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(context.Background()) }()

	steps := []struct {
		query  string
		params map[string]any
	}{
		{saveRunQuery, params.run},
		{saveClassesQuery, params.classes},
		{savePackagesQuery, params.packages},
		{saveClassEdgesQuery, params.classEdges},
		{savePackageEdgesQuery, params.packageEdges},
		{saveClassCyclesQuery, params.classCycles},
		{savePackageCyclesQuery, params.packageCycles},
	}

	_, err := session.ExecuteWrite(cctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, step := range steps {
			res, runErr := tx.Run(cctx, step.query, step.params)
			if runErr != nil {
				return nil, runErr
			}
			if _, consumeErr := res.Consume(cctx); consumeErr != nil {
				return nil, consumeErr
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: saving analysis %s: %w", a.ID, err)
	}

	s.logger.Info("neo4j: saved analysis", "id", a.ID, "classes", len(a.Classes), "packages", len(a.Packages))
	return nil
}

type analysisParams struct {
	run           map[string]any
	classes       map[string]any
	packages      map[string]any
	classEdges    map[string]any
	packageEdges  map[string]any
	classCycles   map[string]any
	packageCycles map[string]any
}

// saveParams converts an analysis into driver parameters. Only types the
// driver serialises natively are used: maps, []any, strings, int64, bool and
// time.Time, which is stored as a DATETIME so runs order by instant.
func saveParams(a *models.Analysis) analysisParams {
	sum := a.Summary()
	return analysisParams{
		run: map[string]any{
			"run":        a.ID,
			"title":      a.Title,
			"created_at": a.CreatedAt.UTC(),
			"summary": map[string]any{
				"classes":          int64(sum.Classes),
				"packages":         int64(sum.Packages),
				"external_classes": int64(sum.ExternalClasses),
				"class_cycles":     int64(sum.ClassCycles),
				"package_cycles":   int64(sum.PackageCycles),
			},
		},
		classes: map[string]any{
			"run":   a.ID,
			"nodes": nodeParams(a.Classes, true),
		},
		packages: map[string]any{
			"run":   a.ID,
			"nodes": nodeParams(a.Packages, false),
		},
		classEdges: map[string]any{
			"run":   a.ID,
			"edges": edgeParams(a.Classes),
		},
		packageEdges: map[string]any{
			"run":   a.ID,
			"edges": edgeParams(a.Packages),
		},
		classCycles: map[string]any{
			"run":    a.ID,
			"cycles": cycleParams(a.ClassCycles),
		},
		packageCycles: map[string]any{
			"run":    a.ID,
			"cycles": cycleParams(a.PackageCycles),
		},
	}
}

// nodeParams lists internal nodes followed by the external nodes they use.
func nodeParams(nodes []models.Node, classes bool) []any {
	out := make([]any, 0, len(nodes))
	external := make(map[string]struct{})
	for _, n := range nodes {
		props := map[string]any{
			"size":     int64(n.Size),
			"layer":    int64(n.Layer),
			"cycle":    n.Cycle,
			"external": false,
		}
		if classes {
			props["type"] = string(n.Type)
			props["inner"] = n.Inner
		}
		out = append(out, map[string]any{"name": n.Name, "props": props})
		for _, ext := range n.UsesExternal {
			external[ext] = struct{}{}
		}
	}
	for _, name := range sortedNames(external) {
		props := map[string]any{"external": true}
		if classes {
			props["type"] = string(models.ClassTypeExternal)
		}
		out = append(out, map[string]any{"name": name, "props": props})
	}
	return out
}

func edgeParams(nodes []models.Node) []any {
	var out []any
	for _, n := range nodes {
		for _, to := range n.UsesInternal {
			out = append(out, map[string]any{"from": n.Name, "to": to})
		}
		for _, to := range n.UsesExternal {
			out = append(out, map[string]any{"from": n.Name, "to": to})
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}

func cycleParams(cycles []models.Cycle) []any {
	out := make([]any, 0, len(cycles))
	for _, c := range cycles {
		members := make([]any, len(c.Members))
		for i, m := range c.Members {
			members[i] = m
		}
		out = append(out, map[string]any{
			"name":    c.Name,
			"level":   string(c.Level),
			"layer":   int64(c.Layer),
			"members": members,
		})
	}
	return out
}

const runColumns = `r.id AS id, r.title AS title, r.created_at AS created_at,
       r.classes AS classes, r.packages AS packages, r.external_classes AS external_classes,
       r.class_cycles AS class_cycles, r.package_cycles AS package_cycles`

// GetRun returns the summary of a stored run.
func (s *Neo4jStore) GetRun(ctx context.Context, id string) (*models.RunSummary, error) {
	cctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()

	res, err := neo4j.ExecuteQuery(cctx, s.driver,
		"MATCH (r:Run {id: $id}) RETURN "+runColumns,
		map[string]any{"id": id},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: getting run %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sum, err := summaryFromRecord(res.Records[0])
	if err != nil {
		return nil, fmt.Errorf("neo4j: decoding run %s: %w", id, err)
	}
	return sum, nil
}

// ListRuns returns stored runs, newest first.
func (s *Neo4jStore) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	cctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()

	res, err := neo4j.ExecuteQuery(cctx, s.driver,
		"MATCH (r:Run) RETURN "+runColumns+" ORDER BY r.created_at DESC, r.id LIMIT $limit",
		map[string]any{"limit": int64(limit)},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing runs: %w", err)
	}
	out := make([]models.RunSummary, 0, len(res.Records))
	for _, rec := range res.Records {
		sum, decodeErr := summaryFromRecord(rec)
		if decodeErr != nil {
			return nil, fmt.Errorf("neo4j: decoding run: %w", decodeErr)
		}
		out = append(out, *sum)
	}
	return out, nil
}

// Cycles returns the cycles of a stored run at the given level.
func (s *Neo4jStore) Cycles(ctx context.Context, runID string, level models.Level) ([]models.Cycle, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	cctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()

	res, err := neo4j.ExecuteQuery(cctx, s.driver, `
MATCH (k:Cycle {run: $run, level: $level})<-[:IN_CYCLE]-(n)
WITH k, n ORDER BY n.name
RETURN k.name AS name, k.layer AS layer, collect(n.name) AS members
ORDER BY name`,
		map[string]any{"run": runID, "level": string(level)},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing cycles of %s: %w", runID, err)
	}
	out := make([]models.Cycle, 0, len(res.Records))
	for _, rec := range res.Records {
		c, decodeErr := cycleFromRecord(rec, level)
		if decodeErr != nil {
			return nil, fmt.Errorf("neo4j: decoding cycle: %w", decodeErr)
		}
		out = append(out, c)
	}
	return out, nil
}

// Close releases the driver.
func (s *Neo4jStore) Close() error {
	ctx, cancel := withTimeout(context.Background(), neo4jCloseTimeout)
	defer cancel()
	return s.driver.Close(ctx)
}

func summaryFromRecord(rec *neo4j.Record) (*models.RunSummary, error) {
	id, _, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil {
		return nil, err
	}
	title, _, err := neo4j.GetRecordValue[string](rec, "title")
	if err != nil {
		return nil, err
	}
	createdAt, _, err := neo4j.GetRecordValue[time.Time](rec, "created_at")
	if err != nil {
		return nil, fmt.Errorf("reading created_at: %w", err)
	}

	sum := &models.RunSummary{ID: id, Title: title, CreatedAt: createdAt.UTC()}
	counts := []struct {
		key string
		dst *int
	}{
		{"classes", &sum.Classes},
		{"packages", &sum.Packages},
		{"external_classes", &sum.ExternalClasses},
		{"class_cycles", &sum.ClassCycles},
		{"package_cycles", &sum.PackageCycles},
	}
	for _, c := range counts {
		v, _, getErr := neo4j.GetRecordValue[int64](rec, c.key)
		if getErr != nil {
			return nil, getErr
		}
		*c.dst = int(v)
	}
	return sum, nil
}

func cycleFromRecord(rec *neo4j.Record, level models.Level) (models.Cycle, error) {
	name, _, err := neo4j.GetRecordValue[string](rec, "name")
	if err != nil {
		return models.Cycle{}, err
	}
	layer, _, err := neo4j.GetRecordValue[int64](rec, "layer")
	if err != nil {
		return models.Cycle{}, err
	}
	raw, _, err := neo4j.GetRecordValue[[]any](rec, "members")
	if err != nil {
		return models.Cycle{}, err
	}
	members := make([]string, 0, len(raw))
	for _, m := range raw {
		s, ok := m.(string)
		if !ok {
			return models.Cycle{}, fmt.Errorf("cycle %s: member %v is %T, want string", name, m, m)
		}
		members = append(members, s)
	}
	return models.Cycle{Name: name, Level: level, Layer: int(layer), Members: members}, nil
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
