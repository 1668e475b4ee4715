package marstools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jward/marstools/internal/runtime"
	"github.com/jward/marstools/internal/scene"
	"github.com/jward/marstools/internal/store"
)

// Metadata keys recorded by ImportFile.
const (
	metaSceneHash   = "scene_hash"
	metaSceneSource = "scene_source"
)

// Engine ties a SQLite scene store to hierarchy queries and the Risor
// scripting runtime.
type Engine struct {
	store   *store.Store
	runtime *runtime.Runtime
	query   *QueryBuilder
	logger  *zap.Logger
}

// Option configures an Engine or a QueryBuilder.
type Option func(*settings)

type settings struct {
	logger     *zap.Logger
	bodyType   string
	scriptsFS  fs.FS
	scriptsDir string
}

func newSettings(opts []Option) *settings {
	s := &settings{
		logger:   zap.NewNop(),
		bodyType: scene.BodyType,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger sets the logger for query diagnostics and script log calls.
// The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBodyType changes the type tag FindAllRoots treats as a model root.
func WithBodyType(tag string) Option {
	return func(s *settings) {
		s.bodyType = tag
	}
}

// WithScriptsFS loads Risor scripts from fsys instead of from disk. This
// enables embedding scripts via go:embed. When set, the scripts directory
// is ignored.
func WithScriptsFS(fsys fs.FS) Option {
	return func(s *settings) {
		s.scriptsFS = fsys
	}
}

// WithScriptsDir loads Risor scripts from dir on disk.
func WithScriptsDir(dir string) Option {
	return func(s *settings) {
		s.scriptsDir = dir
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
// Script loading priority:
//  1. If WithScriptsFS is set, use the provided fs.FS
//  2. Otherwise, use the WithScriptsDir directory on disk
func New(dbPath string, opts ...Option) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("marstools: create db directory: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("marstools: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("marstools: migrate: %w", err)
	}

	cfg := newSettings(opts)
	q := &QueryBuilder{provider: s, logger: cfg.logger, bodyType: cfg.bodyType}

	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(cfg.logger)}
	if cfg.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(cfg.scriptsFS))
	}

	return &Engine{
		store:   s,
		runtime: runtime.NewRuntime(q, cfg.scriptsDir, rtOpts...),
		query:   q,
		logger:  cfg.logger,
	}, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns the QueryBuilder over the Engine's store.
func (e *Engine) Query() *QueryBuilder {
	return e.query
}

// ImportResult describes one ImportFile call.
type ImportResult struct {
	Path      string
	Objects   int
	Unchanged bool // content hash matched the last import; nothing written
}

// ImportFile replaces the stored scene with the snapshot at path. When the
// file's content hash matches the last import from the same path the store
// is left alone, unless force is set.
func (e *Engine) ImportFile(ctx context.Context, path string, force bool) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	f, err := scene.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	hash := store.ComputeSceneHash(f)

	if !force && e.unchanged(abs, hash) {
		e.logger.Debug("scene unchanged, skipping import", zap.String("path", abs))
		return &ImportResult{Path: abs, Unchanged: true}, nil
	}

	n, err := e.store.ImportScene(f, true, map[string]string{
		metaSceneSource: abs,
		metaSceneHash:   hash,
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	e.logger.Info("scene imported", zap.String("path", abs), zap.Int("objects", n))
	return &ImportResult{Path: abs, Objects: n}, nil
}

// unchanged reports whether the last import came from path with content
// hash. Metadata read failures count as changed.
func (e *Engine) unchanged(path, hash string) bool {
	src, err := e.store.GetMetadata(metaSceneSource)
	if err != nil || src != path {
		return false
	}
	stored, err := e.store.GetMetadata(metaSceneHash)
	if err != nil || stored == "" {
		return false
	}
	return stored == hash
}

// ExportFile writes the stored scene to path as a YAML snapshot.
func (e *Engine) ExportFile(ctx context.Context, path string) (int, error) {
	f, err := e.store.Export(ctx)
	if err != nil {
		return 0, err
	}
	if err := f.WriteFile(path); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(f.Objects), nil
}

// RunScript runs a Risor script from the configured scripts source with the
// scene globals plus extra.
func (e *Engine) RunScript(ctx context.Context, path string, extra map[string]any) error {
	return e.runtime.RunScript(ctx, path, extra)
}

// RunSource runs Risor source with the scene globals plus extra.
func (e *Engine) RunSource(ctx context.Context, src string, extra map[string]any) error {
	return e.runtime.RunSource(ctx, src, extra)
}

// Scripts lists the scripts available to RunScript.
func (e *Engine) Scripts() ([]string, error) {
	return e.runtime.ScriptNames()
}
