package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
	"github.com/ajitpratap0/classcycle/internal/testsupport"
	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CLASSCYCLE_LOGGING_LEVEL", "error")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func cyclicInput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteClassDir(t, dir,
		testsupport.NewClassFile("zoo.Keeper").Field("cage", "Lzoo/cages/Cage;"),
		testsupport.NewClassFile("zoo.cages.Cage").Uses("zoo.Keeper"),
		testsupport.NewClassFile("zoo.Visitor").Uses("zoo.Keeper"),
	)
	return dir
}

func TestAnalyzeCommand_XMLToFile(t *testing.T) {
	dir := cyclicInput(t)
	outPath := filepath.Join(t.TempDir(), "report.xml")

	_, err := execute(t, "", "analyze", "--format", "xml", "--output", outPath, "--title", "Zoo & co", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `title="Zoo &amp; co"`)
	assert.Contains(t, string(data), "zoo.Keeper et al.")
}

func TestAnalyzeCommand_FailOnCycles(t *testing.T) {
	_, err := execute(t, "", "analyze", "--fail-on-cycles", cyclicInput(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCyclesFound))

	_, err = execute(t, "", "analyze", "--fail-on-cycles", "--exclude", "zoo.cages.*", cyclicInput(t))
	require.NoError(t, err)
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	_, err := execute(t, "", "analyze")
	require.Error(t, err)

	_, err = execute(t, "", "analyze", "--format", "pdf", cyclicInput(t))
	require.Error(t, err)

	_, err = execute(t, "", "analyze", filepath.Join(t.TempDir(), "missing.jar"))
	require.Error(t, err)
}

func TestWriteReportFile(t *testing.T) {
	a := &models.Analysis{ID: "run-1", Title: "zoo"}

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReportFile(path, a, report.FormatJSON))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run-1"`)

	err = writeReportFile(filepath.Join(t.TempDir(), "missing", "report.json"), a, report.FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating output file")
}

func TestWriteReportFile_WriteFailureSurfaces(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	a := &models.Analysis{ID: "run-1", Title: strings.Repeat("x", 1<<16)}
	require.Error(t, writeReportFile("/dev/full", a, report.FormatXML))
}

func TestCyclesCommand(t *testing.T) {
	dir := cyclicInput(t)

	out, err := execute(t, "", "cycles", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "zoo.Keeper et al.")
	assert.Contains(t, out, "zoo.Keeper, zoo.cages.Cage")

	out, err = execute(t, "", "cycles", "--packages", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "zoo et al.")

	out, err = execute(t, "", "cycles", "--merge-inner", "--exclude", "zoo.Keeper", dir)
	require.NoError(t, err)
	assert.Equal(t, "No class cycles found.\n", out)
}

func TestEscapeCommand_Args(t *testing.T) {
	out, err := execute(t, "", "escape", "<hel&lo>")
	require.NoError(t, err)
	assert.Equal(t, "&lt;hel&amp;lo&gt;\n", out)

	out, err = execute(t, "", "escape", "--quotes", `say "hi"`, "&", "'bye'")
	require.NoError(t, err)
	assert.Equal(t, "say &quot;hi&quot; &amp; &apos;bye&apos;\n", out)
}

func TestEscapeCommand_Stdin(t *testing.T) {
	in := strings.Repeat("a<b>&c\n", 10000)
	out, err := execute(t, in, "escape")
	require.NoError(t, err)
	assert.Equal(t, xmlutil.Escape(in), out)
}

func TestEscapeStream_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, escapeStream(&out, strings.NewReader(""), xmlutil.Options{}))
	assert.Empty(t, out.String())
}
