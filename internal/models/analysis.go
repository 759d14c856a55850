package models

import "time"

// RefType describes the direction of a dependency reference in a report.
type RefType string

const (
	RefUsedBy       RefType = "usedBy"
	RefUsesInternal RefType = "usesInternal"
	RefUsesExternal RefType = "usesExternal"
)

// Level selects the granularity of a dependency graph.
type Level string

const (
	LevelClass   Level = "class"
	LevelPackage Level = "package"
)

// IsValid returns true if the level is recognized.
func (l Level) IsValid() bool {
	return l == LevelClass || l == LevelPackage
}

// Node is a vertex of the class or package graph with its computed metrics.
type Node struct {
	Name         string    `json:"name"`
	Type         ClassType `json:"type,omitempty"`
	Inner        bool      `json:"inner,omitempty"`
	Size         int       `json:"size"`
	Layer        int       `json:"layer"`
	Cycle        string    `json:"cycle,omitempty"`
	UsedBy       []string  `json:"used_by,omitempty"`
	UsesInternal []string  `json:"uses_internal,omitempty"`
	UsesExternal []string  `json:"uses_external,omitempty"`
}

// Cycle is a strong component with more than one member.
type Cycle struct {
	Name    string   `json:"name"`
	Level   Level    `json:"level"`
	Layer   int      `json:"layer"`
	Members []string `json:"members"`
}

// Size returns the number of members of the cycle.
func (c Cycle) Size() int { return len(c.Members) }

// Edge is a directed dependency between two graph nodes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Analysis holds the full result of one dependency analysis run.
type Analysis struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	Classes         []Node    `json:"classes"`
	ClassCycles     []Cycle   `json:"class_cycles"`
	Packages        []Node    `json:"packages"`
	PackageCycles   []Cycle   `json:"package_cycles"`
	ExternalClasses []string  `json:"external_classes,omitempty"`
}

// Cycles returns the cycles of the given level.
func (a *Analysis) Cycles(level Level) []Cycle {
	if level == LevelPackage {
		return a.PackageCycles
	}
	return a.ClassCycles
}

// Nodes returns the nodes of the given level.
func (a *Analysis) Nodes(level Level) []Node {
	if level == LevelPackage {
		return a.Packages
	}
	return a.Classes
}

// Summary condenses the analysis into a RunSummary.
func (a *Analysis) Summary() RunSummary {
	return RunSummary{
		ID:              a.ID,
		Title:           a.Title,
		CreatedAt:       a.CreatedAt,
		Classes:         len(a.Classes),
		Packages:        len(a.Packages),
		ExternalClasses: len(a.ExternalClasses),
		ClassCycles:     len(a.ClassCycles),
		PackageCycles:   len(a.PackageCycles),
	}
}

// RunSummary is the persisted overview of an analysis run.
type RunSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	Classes         int       `json:"classes"`
	Packages        int       `json:"packages"`
	ExternalClasses int       `json:"external_classes"`
	ClassCycles     int       `json:"class_cycles"`
	PackageCycles   int       `json:"package_cycles"`
}
