package report

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

type attr struct {
	key, value string
}

// xmlWriter emits indented XML. The first write error is kept and all later
// writes become no-ops.
type xmlWriter struct {
	w     *bufio.Writer
	depth int
	err   error
}

func (x *xmlWriter) raw(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(s)
}

func (x *xmlWriter) escaped(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(textBreaks.Replace(xmlutil.Escape(xmlSafe(s))))
}

var (
	// Parsers fold a literal \r in text, and turn \t \n \r in attribute
	// values into spaces. References survive both.
	textBreaks = strings.NewReplacer("\r", "&#xD;")
	attrBreaks = strings.NewReplacer("\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
)

// xmlSafe replaces what an XML 1.0 document cannot carry, even as a
// reference, with U+FFFD: C0 controls other than \t \n \r, U+FFFE, U+FFFF
// and invalid UTF-8.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r':
			return '\uFFFD'
		case r == 0xFFFE || r == 0xFFFF:
			return '\uFFFD'
		}
		return r
	}, strings.ToValidUTF8(s, "\uFFFD"))
}

func (x *xmlWriter) indent() {
	for range x.depth {
		x.raw("  ")
	}
}

func (x *xmlWriter) tag(name string, attrs []attr) {
	x.indent()
	x.raw("<" + name)
	for _, a := range attrs {
		x.raw(" " + a.key + `="` + attrBreaks.Replace(xmlutil.EscapeAttr(xmlSafe(a.value))) + `"`)
	}
}

func (x *xmlWriter) open(name string, attrs ...attr) {
	x.tag(name, attrs)
	x.raw(">\n")
	x.depth++
}

func (x *xmlWriter) empty(name string, attrs ...attr) {
	x.tag(name, attrs)
	x.raw("/>\n")
}

func (x *xmlWriter) text(name, content string) {
	x.tag(name, nil)
	x.raw(">")
	x.escaped(content)
	x.raw("</" + name + ">\n")
}

func (x *xmlWriter) close(name string) {
	x.depth--
	x.indent()
	x.raw("</" + name + ">\n")
}

func itoa(n int) string { return strconv.Itoa(n) }

// WriteXML renders a in the classycle XML layout. Names come back unchanged
// from a conforming parser, except characters XML 1.0 cannot represent, which
// are written as U+FFFD.
func WriteXML(w io.Writer, a *models.Analysis) error {
	x := &xmlWriter{w: bufio.NewWriter(w)}
	x.raw(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	x.open("classycle",
		attr{"title", a.Title},
		attr{"date", a.CreatedAt.UTC().Format(time.RFC3339)},
		attr{"id", a.ID},
	)
	x.text("title", a.Title)

	writeCycles(x, "cycles", "cycle", "classes", "classRef", a.ClassCycles)

	x.open("classes", attr{"numberOfExternalClasses", itoa(len(a.ExternalClasses))})
	for _, n := range a.Classes {
		writeNode(x, "class", "classRef", n,
			attr{"type", string(n.Type)},
			attr{"innerClass", strconv.FormatBool(n.Inner)},
		)
	}
	writeExternal(x, "class", "classRef", a.Classes,
		attr{"type", string(models.ClassTypeExternal)},
		attr{"innerClass", "false"},
	)
	x.close("classes")

	writeCycles(x, "packageCycles", "packageCycle", "packages", "packageRef", a.PackageCycles)

	x.open("packages")
	for _, n := range a.Packages {
		writeNode(x, "package", "packageRef", n)
	}
	writeExternal(x, "package", "packageRef", a.Packages)
	x.close("packages")

	x.close("classycle")
	if x.err != nil {
		return x.err
	}
	return x.w.Flush()
}

func writeCycles(x *xmlWriter, group, elem, membersElem, refElem string, cycles []models.Cycle) {
	x.open(group)
	for _, c := range cycles {
		x.open(elem,
			attr{"name", c.Name},
			attr{"size", itoa(c.Size())},
			attr{"layer", itoa(c.Layer)},
		)
		x.open(membersElem)
		for _, m := range c.Members {
			x.empty(refElem, attr{"name", m})
		}
		x.close(membersElem)
		x.close(elem)
	}
	x.close(group)
}

func writeNode(x *xmlWriter, elem, refElem string, n models.Node, extra ...attr) {
	attrs := append([]attr{{"name", n.Name}}, extra...)
	attrs = append(attrs,
		attr{"size", itoa(n.Size)},
		attr{"usedBy", itoa(len(n.UsedBy))},
		attr{"usesInternal", itoa(len(n.UsesInternal))},
		attr{"usesExternal", itoa(len(n.UsesExternal))},
		attr{"layer", itoa(n.Layer)},
		attr{"cycle", n.Cycle},
	)
	x.open(elem, attrs...)
	refs := []struct {
		kind  models.RefType
		names []string
	}{
		{models.RefUsedBy, n.UsedBy},
		{models.RefUsesInternal, n.UsesInternal},
		{models.RefUsesExternal, n.UsesExternal},
	}
	for _, r := range refs {
		for _, name := range r.names {
			x.empty(refElem, attr{"name", name}, attr{"type", string(r.kind)})
		}
	}
	x.close(elem)
}

// writeExternal lists the external nodes referenced by nodes, with their users.
func writeExternal(x *xmlWriter, elem, refElem string, nodes []models.Node, extra ...attr) {
	users := externalUsers(nodes)
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sort.Strings(users[name])
		writeNode(x, elem, refElem, models.Node{Name: name, UsedBy: users[name]}, extra...)
	}
}
