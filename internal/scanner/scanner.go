// Package scanner discovers class files in directories and archives and
// parses them in parallel.
package scanner

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/classcycle/internal/classfile"
	"github.com/ajitpratap0/classcycle/internal/metrics"
	"github.com/ajitpratap0/classcycle/internal/models"
)

var (
	// ErrNoInput is returned by Scan when no path is given.
	ErrNoInput = errors.New("no input paths")

	// ErrUnsupportedInput is returned for a file that is neither a class file nor an archive.
	ErrUnsupportedInput = errors.New("unsupported input file")
)

// Options controls which classes are analysed and how.
type Options struct {
	// Workers bounds the number of class files parsed concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// MergeInner folds inner classes (Outer$Inner) into their outer class.
	MergeInner bool

	// Include and Exclude are wildcard patterns on dotted class names,
	// e.g. "com.acme.*". A class is analysed if it matches any Include
	// pattern (or Include is empty) and no Exclude pattern. References to
	// excluded classes are dropped as well.
	Include []string
	Exclude []string
}

// ValidatePattern reports whether p is a well-formed class name pattern.
func ValidatePattern(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("empty pattern")
	}
	if _, err := path.Match(p, ""); err != nil {
		return fmt.Errorf("pattern %q: %w", p, err)
	}
	return nil
}

// Scanner parses class files from a set of input paths.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Scanner after validating the filter patterns.
func New(opts Options, logger *slog.Logger) (*Scanner, error) {
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if err := ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("scanner: %w", err)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Scanner{opts: opts, logger: logger}, nil
}

// source is one class file, either on disk or inside an archive.
type source struct {
	name string
	read func() ([]byte, error)
}

// Scan parses every class file reachable from paths. Directories are walked
// recursively; .jar and .zip files are read as archives. Files that fail to
// parse are logged and skipped; unreadable paths abort the scan.
func (s *Scanner) Scan(ctx context.Context, paths ...string) ([]models.ClassInfo, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	var sources []source
	for _, p := range paths {
		found, archives, err := s.collect(p)
		closers = append(closers, archives...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	s.logger.Debug("scanner: collected class files", "count", len(sources), "paths", len(paths))

	results := make([]*models.ClassInfo, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := src.read()
			if err != nil {
				return fmt.Errorf("scanner: reading %s: %w", src.name, err)
			}
			info, err := classfile.ParseBytes(b)
			if errors.Is(err, classfile.ErrModule) {
				return nil
			}
			if err != nil {
				metrics.Inc(metrics.ParseErrors)
				s.logger.Warn("scanner: skipping unparsable class file", "source", src.name, "error", err)
				return nil
			}
			info.Source = src.name
			results[i] = info
			metrics.Inc(metrics.ClassesParsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.finish(results), nil
}

func (s *Scanner) collect(p string) ([]source, []io.Closer, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, nil, fmt.Errorf("scanner: %w", err)
	}

	switch {
	case fi.IsDir():
		var (
			sources  []source
			closers  []io.Closer
			archives []string
		)
		walkErr := filepath.WalkDir(p, func(fp string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch {
			case isClassFile(fp):
				sources = append(sources, fileSource(fp))
			case isArchive(fp):
				archives = append(archives, fp)
			}
			return nil
		})
		if walkErr != nil {
			return nil, nil, fmt.Errorf("scanner: walking %s: %w", p, walkErr)
		}
		for _, a := range archives {
			found, zr, archErr := openArchive(a)
			if archErr != nil {
				return nil, closers, archErr
			}
			closers = append(closers, zr)
			sources = append(sources, found...)
		}
		return sources, closers, nil
	case isArchive(p):
		found, zr, archErr := openArchive(p)
		if archErr != nil {
			return nil, nil, archErr
		}
		return found, []io.Closer{zr}, nil
	case isClassFile(p):
		return []source{fileSource(p)}, nil, nil
	default:
		return nil, nil, fmt.Errorf("scanner: %s: %w", p, ErrUnsupportedInput)
	}
}

func fileSource(p string) source {
	return source{name: p, read: func() ([]byte, error) { return os.ReadFile(p) }}
}

func openArchive(p string) ([]source, io.Closer, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, nil, fmt.Errorf("scanner: opening archive %s: %w", p, err)
	}
	var sources []source
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isClassFile(f.Name) {
			continue
		}
		sources = append(sources, source{
			name: p + "!/" + f.Name,
			read: func() ([]byte, error) {
				rc, openErr := f.Open()
				if openErr != nil {
					return nil, openErr
				}
				defer func() { _ = rc.Close() }()
				return io.ReadAll(rc)
			},
		})
	}
	return sources, zr, nil
}

func isClassFile(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".class")
}

func isArchive(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".jar" || ext == ".zip"
}

// finish drops duplicates and filtered classes and applies inner-class merging.
func (s *Scanner) finish(results []*models.ClassInfo) []models.ClassInfo {
	seen := make(map[string]string, len(results))
	classes := make([]models.ClassInfo, 0, len(results))
	for _, info := range results {
		if info == nil {
			continue
		}
		if first, dup := seen[info.Name]; dup {
			s.logger.Warn("scanner: duplicate class ignored", "class", info.Name, "kept", first, "ignored", info.Source)
			continue
		}
		seen[info.Name] = info.Source
		if !s.analysed(info.Name) {
			continue
		}
		info.References = s.filterRefs(info.References)
		classes = append(classes, *info)
	}

	if s.opts.MergeInner {
		classes = mergeInner(classes)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes
}

func (s *Scanner) analysed(name string) bool {
	if s.excluded(name) {
		return false
	}
	if len(s.opts.Include) == 0 {
		return true
	}
	return matchAny(s.opts.Include, name)
}

func (s *Scanner) excluded(name string) bool {
	return matchAny(s.opts.Exclude, name)
}

func (s *Scanner) filterRefs(refs []string) []string {
	if len(s.opts.Exclude) == 0 {
		return refs
	}
	out := refs[:0:0]
	for _, r := range refs {
		if !s.excluded(r) {
			out = append(out, r)
		}
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		// Patterns were validated in New, so Match can not fail here.
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// mergeInner folds every Outer$Inner class into Outer, combining sizes and
// references. An inner class whose outer class was not scanned becomes a
// top-level entry under the outer name.
func mergeInner(classes []models.ClassInfo) []models.ClassInfo {
	merged := make(map[string]*models.ClassInfo, len(classes))
	refs := make(map[string]map[string]struct{}, len(classes))
	var order []string

	for i := range classes {
		c := &classes[i]
		outer := models.OuterClass(c.Name)
		m, ok := merged[outer]
		if !ok {
			m = &models.ClassInfo{Name: outer, Type: models.ClassTypeClass, Source: c.Source}
			merged[outer] = m
			refs[outer] = make(map[string]struct{})
			order = append(order, outer)
		}
		if c.Name == outer {
			m.Type = c.Type
			m.Source = c.Source
		}
		m.Size += c.Size
		for _, r := range c.References {
			refs[outer][models.OuterClass(r)] = struct{}{}
		}
	}

	out := make([]models.ClassInfo, 0, len(order))
	for _, name := range order {
		m := merged[name]
		delete(refs[name], name)
		m.References = make([]string, 0, len(refs[name]))
		for r := range refs[name] {
			m.References = append(m.References, r)
		}
		sort.Strings(m.References)
		out = append(out, *m)
	}
	return out
}
