// Package report renders an analysis as XML, JSON or text tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/classcycle/internal/metrics"
	"github.com/ajitpratap0/classcycle/internal/models"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// ValidFormats is the set of all valid formats.
var ValidFormats = []Format{FormatText, FormatXML, FormatJSON}

// IsValid returns true if the format is recognized.
func (f Format) IsValid() bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// ParseFormat converts s into a Format, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("report: unsupported format %q (use text, xml or json)", s)
	}
	return f, nil
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Write renders a in the given format.
func Write(w io.Writer, a *models.Analysis, f Format) error {
	var err error
	switch f {
	case FormatXML:
		err = WriteXML(w, a)
	case FormatJSON:
		err = WriteJSON(w, a)
	case FormatText:
		err = WriteText(w, a)
	default:
		return fmt.Errorf("report: unsupported format %q", f)
	}
	if err != nil {
		return err
	}
	metrics.Inc(metrics.ReportsWritten)
	return nil
}

// WriteJSON renders a as indented JSON.
func WriteJSON(w io.Writer, a *models.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("report: encoding JSON: %w", err)
	}
	return nil
}

// externalUsers maps every external name of the level to the nodes using it.
func externalUsers(nodes []models.Node) map[string][]string {
	users := make(map[string][]string)
	for _, n := range nodes {
		for _, ext := range n.UsesExternal {
			users[ext] = append(users[ext], n.Name)
		}
	}
	return users
}
