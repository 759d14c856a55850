// Package advisor asks Claude how to break dependency cycles.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

// ErrEmptyCycle is returned when a cycle has fewer than two members.
var ErrEmptyCycle = errors.New("cycle has no members")

const maxAdviceTokens = 1024

// Advisor suggests how to break a dependency cycle.
type Advisor interface {
	Advise(ctx context.Context, cycle models.Cycle, edges []models.Edge) (string, error)
}

// ClaudeAdvisor uses Claude to produce refactoring advice.
type ClaudeAdvisor struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAdvisor creates a Claude-backed advisor.
func NewAdvisor(apiKey, model string, logger *slog.Logger) *ClaudeAdvisor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeAdvisor{
		client: &client,
		model:  model,
		logger: logger,
	}
}

const systemPrompt = "You are a software architect who specialises in untangling cyclic dependencies in JVM code bases. Answer in plain text."

// Identifiers are embedded inside XML tags, so every name is escaped first.
const promptTemplate = `The following %s form a dependency cycle named <cycle_name>%s</cycle_name>.

<members>
%s</members>

<dependencies>
%s</dependencies>

Suggest which dependencies to invert or remove to break the cycle, with a short rationale for each.
Prefer the smallest number of changes.`

// BuildPrompt renders the user prompt for a cycle.
func BuildPrompt(cycle models.Cycle, edges []models.Edge) string {
	kind := "classes"
	if cycle.Level == models.LevelPackage {
		kind = "packages"
	}

	var members strings.Builder
	for _, m := range cycle.Members {
		fmt.Fprintf(&members, "<member>%s</member>\n", xmlutil.Escape(m))
	}

	var deps strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&deps, "<dependency><from>%s</from><to>%s</to></dependency>\n",
			xmlutil.Escape(e.From), xmlutil.Escape(e.To))
	}

	return fmt.Sprintf(promptTemplate, kind, xmlutil.Escape(cycle.Name), members.String(), deps.String())
}

// Advise asks Claude for advice on breaking the cycle.
func (a *ClaudeAdvisor) Advise(ctx context.Context, cycle models.Cycle, edges []models.Edge) (string, error) {
	if cycle.Size() < 2 {
		return "", fmt.Errorf("advisor: %s: %w", cycle.Name, ErrEmptyCycle)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxAdviceTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(BuildPrompt(cycle, edges)),
			),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("advisor: calling Claude API: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("advisor: empty response from Claude")
	}

	a.logger.Debug("advisor: received advice", "cycle", cycle.Name, "chars", len(text))
	return strings.TrimSpace(text), nil
}

// CycleEdges returns the dependencies between members of the cycle, sorted.
func CycleEdges(a *models.Analysis, cycle models.Cycle) []models.Edge {
	members := make(map[string]struct{}, len(cycle.Members))
	for _, m := range cycle.Members {
		members[m] = struct{}{}
	}

	var edges []models.Edge
	for _, n := range a.Nodes(cycle.Level) {
		if _, ok := members[n.Name]; !ok {
			continue
		}
		for _, to := range n.UsesInternal {
			if _, ok := members[to]; ok {
				edges = append(edges, models.Edge{From: n.Name, To: to})
			}
		}
	}
	slices.SortFunc(edges, func(x, y models.Edge) int {
		if c := strings.Compare(x.From, y.From); c != 0 {
			return c
		}
		return strings.Compare(x.To, y.To)
	})
	return edges
}
