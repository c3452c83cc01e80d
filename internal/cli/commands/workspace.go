package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/conduit-lang/mop/internal/decl"
	"github.com/conduit-lang/mop/internal/telemetry"
	"github.com/conduit-lang/mop/pkg/mop"
	"github.com/conduit-lang/mop/pkg/namespace"
)

// workspace is one fresh object model populated from declaration files.
type workspace struct {
	names    *namespace.Keeper
	builder  *mop.Builder
	metrics  *telemetry.Collector
	files    []string
	results  []*decl.Result
	declared int
	errors   decl.ErrorList
}

// loadWorkspace loads files in order into a new builder, expanding
// directories with patterns. Declaration errors are collected; only
// unreadable or malformed files fail the call.
func loadWorkspace(logger *zap.Logger, paths, patterns []string) (*workspace, error) {
	files, err := expandPaths(paths, patterns)
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		files:   files,
		names:   namespace.NewKeeper(),
		metrics: telemetry.New(),
	}
	ws.builder = mop.NewBuilder(
		mop.WithLogger(logger),
		mop.WithNamespace(ws.names),
		mop.WithObserver(ws.metrics),
	)
	loader := decl.NewLoader(ws.builder, ws.names, decl.WithLogger(logger))

	for _, file := range files {
		res, err := loader.LoadFile(file)
		if err != nil {
			return nil, err
		}
		ws.results = append(ws.results, res)
		ws.declared += len(res.Declared)
		ws.errors = append(ws.errors, res.Errors...)
	}
	return ws, nil
}

// lookup resolves a declared type by name.
func (ws *workspace) lookup(name string) (mop.Type, bool) {
	v, err := ws.names.Resolve(name)
	if err != nil {
		return nil, false
	}
	t, ok := v.(mop.Type)
	return t, ok
}

// typeNames lists every declared type for suggestions.
func (ws *workspace) typeNames() []string {
	return ws.names.Paths()
}

// errTypeNotFound is returned after the not-found message was printed.
type errTypeNotFound struct{ name string }

func (e errTypeNotFound) Error() string {
	return fmt.Sprintf("type %s not found", e.name)
}

// expandPaths replaces each directory with the files in it matching
// patterns, sorted. Files are kept as given.
func expandPaths(paths, patterns []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var matched []string
		for _, pattern := range patterns {
			m, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, fmt.Errorf("pattern %s: %w", pattern, err)
			}
			matched = append(matched, m...)
		}
		slices.Sort(matched)
		files = append(files, slices.Compact(matched)...)
	}
	return files, nil
}
