// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint of the serve command.
package metrics

import "expvar"

// Operation counters.
var (
	ClassesParsed  = expvar.NewInt("classcycle_classes_parsed_total")
	ParseErrors    = expvar.NewInt("classcycle_parse_errors_total")
	CyclesFound    = expvar.NewInt("classcycle_cycles_found_total")
	ReportsWritten = expvar.NewInt("classcycle_reports_written_total")
	AnalysesTotal  = expvar.NewInt("classcycle_analyses_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
