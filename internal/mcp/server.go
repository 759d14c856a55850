// Package mcp implements the Model Context Protocol server for classcycle.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
	"github.com/ajitpratap0/classcycle/internal/scanner"
	"github.com/ajitpratap0/classcycle/internal/store"
	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

// defaultRunsLimit is the default number of runs returned by the runs tool.
const defaultRunsLimit = 20

// Server wraps an MCPServer with classcycle dependencies.
type Server struct {
	mcp         *mcpserver.MCPServer
	scanOpts    scanner.Options
	analyzeOpts analyzer.Options
	st          store.Store
	logger      *slog.Logger
}

// NewServer creates a new MCP server. st may be nil, in which case saving
// analyses and listing runs return an error response.
func NewServer(scanOpts scanner.Options, analyzeOpts analyzer.Options, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		scanOpts:    scanOpts,
		analyzeOpts: analyzeOpts,
		st:          st,
		logger:      logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"classcycle",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildAnalyzeTool(), s.handleAnalyze)
	mcpSrv.AddTool(buildCyclesTool(), s.handleCycles)
	mcpSrv.AddTool(buildReportTool(), s.handleReport)
	mcpSrv.AddTool(buildEscapeTool(), s.handleEscape)
	mcpSrv.AddTool(buildRunsTool(), s.handleRuns)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleAnalyze is the exported handler for the "analyze" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleAnalyze(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAnalyze(ctx, req)
}

// HandleCycles is the exported handler for the "cycles" tool.
func (s *Server) HandleCycles(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleCycles(ctx, req)
}

// HandleReport is the exported handler for the "report" tool.
func (s *Server) HandleReport(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleReport(ctx, req)
}

// HandleEscape is the exported handler for the "escape" tool.
func (s *Server) HandleEscape(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleEscape(ctx, req)
}

// HandleRuns is the exported handler for the "runs" tool.
func (s *Server) HandleRuns(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRuns(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// analyze scans the comma separated paths and returns the analysis.
func (s *Server) analyze(ctx context.Context, req mcpgo.CallToolRequest) (*models.Analysis, *mcpgo.CallToolResult) {
	paths := splitPaths(req.GetString("path", ""))
	if len(paths) == 0 {
		return nil, mcpgo.NewToolResultError("path is required and must not be empty")
	}

	opts := s.scanOpts
	opts.MergeInner = req.GetBool("merge_inner", opts.MergeInner)
	sc, err := scanner.New(opts, s.logger)
	if err != nil {
		return nil, mcpgo.NewToolResultErrorf("invalid scanner options: %s", err.Error())
	}

	a, err := analyzer.NewRunner(sc, s.analyzeOpts, s.logger).Run(ctx, paths...)
	if err != nil {
		return nil, mcpgo.NewToolResultErrorf("analysis failed: %s", err.Error())
	}
	return a, nil
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- tool definitions ---

func buildAnalyzeTool() mcpgo.Tool {
	return mcpgo.NewTool("analyze",
		mcpgo.WithDescription("Analyse class files, directories or jars for dependency cycles and return a summary."),
		mcpgo.WithString("path",
			mcpgo.Required(),
			mcpgo.Description("Class file, directory or jar to analyse; separate several with commas"),
		),
		mcpgo.WithBoolean("merge_inner",
			mcpgo.Description("Fold inner classes into their outer class"),
		),
		mcpgo.WithBoolean("save",
			mcpgo.Description("Persist the analysis to the graph store"),
		),
	)
}

func buildCyclesTool() mcpgo.Tool {
	return mcpgo.NewTool("cycles",
		mcpgo.WithDescription("List the dependency cycles found in class files."),
		mcpgo.WithString("path",
			mcpgo.Required(),
			mcpgo.Description("Class file, directory or jar to analyse; separate several with commas"),
		),
		mcpgo.WithString("level",
			mcpgo.Description("Graph level: class or package (default: class)"),
		),
		mcpgo.WithBoolean("merge_inner",
			mcpgo.Description("Fold inner classes into their outer class"),
		),
	)
}

func buildReportTool() mcpgo.Tool {
	return mcpgo.NewTool("report",
		mcpgo.WithDescription("Render a full dependency report as XML, JSON or text."),
		mcpgo.WithString("path",
			mcpgo.Required(),
			mcpgo.Description("Class file, directory or jar to analyse; separate several with commas"),
		),
		mcpgo.WithString("format",
			mcpgo.Description("Report format: xml, json or text (default: xml)"),
		),
		mcpgo.WithBoolean("merge_inner",
			mcpgo.Description("Fold inner classes into their outer class"),
		),
	)
}

func buildEscapeTool() mcpgo.Tool {
	return mcpgo.NewTool("escape",
		mcpgo.WithDescription("Escape text for safe embedding in XML markup."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The text to escape"),
		),
		mcpgo.WithBoolean("quotes",
			mcpgo.Description("Also escape single and double quotes for attribute values"),
		),
	)
}

func buildRunsTool() mcpgo.Tool {
	return mcpgo.NewTool("runs",
		mcpgo.WithDescription("List stored analysis runs, newest first."),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of runs (default: 20)"),
		),
	)
}

// --- handlers ---

type analyzeResult struct {
	Summary       models.RunSummary `json:"summary"`
	ClassCycles   []models.Cycle    `json:"class_cycles"`
	PackageCycles []models.Cycle    `json:"package_cycles"`
	Saved         bool              `json:"saved"`
}

func (s *Server) handleAnalyze(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	save := req.GetBool("save", false)
	if save && s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	a, errResult := s.analyze(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	if save {
		if err := s.st.SaveAnalysis(ctx, a); err != nil {
			return mcpgo.NewToolResultErrorf("saving analysis failed: %s", err.Error()), nil
		}
	}

	return toolResultJSON(analyzeResult{
		Summary:       a.Summary(),
		ClassCycles:   nonNil(a.ClassCycles),
		PackageCycles: nonNil(a.PackageCycles),
		Saved:         save,
	})
}

func (s *Server) handleCycles(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	level := models.Level(strings.ToLower(req.GetString("level", string(models.LevelClass))))
	if !level.IsValid() {
		return mcpgo.NewToolResultErrorf("invalid level %q: must be one of class, package", level), nil
	}

	a, errResult := s.analyze(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return toolResultJSON(nonNil(a.Cycles(level)))
}

func (s *Server) handleReport(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	format, err := report.ParseFormat(req.GetString("format", string(report.FormatXML)))
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	a, errResult := s.analyze(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	var buf strings.Builder
	if err := report.Write(&buf, a, format); err != nil {
		return mcpgo.NewToolResultErrorf("rendering report failed: %s", err.Error()), nil
	}
	return mcpgo.NewToolResultText(buf.String()), nil
}

func (s *Server) handleEscape(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := req.GetArguments()
	raw, ok := args["text"]
	if !ok {
		return mcpgo.NewToolResultError("text is required"), nil
	}
	text, ok := raw.(string)
	if !ok {
		return mcpgo.NewToolResultErrorf("text must be a string, got %T", raw), nil
	}
	opts := xmlutil.Options{Quotes: req.GetBool("quotes", false)}
	return mcpgo.NewToolResultText(xmlutil.EscapeWith(text, opts)), nil
}

func (s *Server) handleRuns(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	limit := req.GetInt("limit", defaultRunsLimit)
	if limit <= 0 {
		return mcpgo.NewToolResultError("limit must be positive"), nil
	}
	runs, err := s.st.ListRuns(ctx, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing runs failed: %s", err.Error()), nil
	}
	return toolResultJSON(runs)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
