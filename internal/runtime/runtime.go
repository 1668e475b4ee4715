package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/marstools/internal/scene"
)

// SceneQuery is the hierarchy query surface scripts drive. The root
// package's QueryBuilder implements it.
type SceneQuery interface {
	Objects(ctx context.Context) ([]*scene.Object, error)
	FindRoot(ctx context.Context, obj *scene.Object) (*scene.Object, error)
	FindAllRoots(ctx context.Context) ([]*scene.Object, error)
	FindChildren(ctx context.Context, root *scene.Object) ([]*scene.Object, error)
	FindObjectsByType(ctx context.Context, tag string) ([]*scene.Object, error)
	FindObjectByName(ctx context.Context, name string) (*scene.Object, error)
	ObjectsNamed(ctx context.Context, names ...string) ([]*scene.Object, error)
	SelectObjects(ctx context.Context, objs []*scene.Object, clearFirst bool) error
	ReplaceInName(ctx context.Context, key, old, repl string) (int, error)
}

// Runtime embeds a Risor VM and exposes scene query host functions to
// scripts.
type Runtime struct {
	query      SceneQuery
	scriptsDir string
	fsys       fs.FS
	logger     *zap.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger routes the script-facing log global to logger.
func WithRuntimeLogger(logger *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates a Runtime wired to the given query surface and scripts
// directory. q may be nil, in which case only log is exposed.
func NewRuntime(q SceneQuery, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		query:      q,
		scriptsDir: scriptsDir,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", zap.String("script", label))
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ScriptNames lists the .risor files available to RunScript, sorted by path.
func (r *Runtime) ScriptNames() ([]string, error) {
	var names []string
	collect := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".risor") {
			names = append(names, path)
		}
		return nil
	}

	switch {
	case r.fsys != nil:
		if err := fs.WalkDir(r.fsys, ".", collect); err != nil {
			return nil, fmt.Errorf("runtime: list scripts: %w", err)
		}
	case r.scriptsDir != "":
		if err := fs.WalkDir(os.DirFS(r.scriptsDir), ".", collect); err != nil {
			return nil, fmt.Errorf("runtime: list scripts: %w", err)
		}
	}
	return names, nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":         mustProxy(&logObject{logger: r.logger.Named("script")}),
		"bbox_center": makeBBoxCenterFn(),
	}

	if r.query != nil {
		globals["objects"] = makeObjectsFn(r.query)
		globals["roots"] = makeRootsFn(r.query)
		globals["find_root"] = makeFindRootFn(r.query)
		globals["children"] = makeChildrenFn(r.query)
		globals["objects_by_type"] = makeObjectsByTypeFn(r.query)
		globals["object_by_name"] = makeObjectByNameFn(r.query)
		globals["select_objects"] = makeSelectFn(r.query)
		globals["replace_in_name"] = makeReplaceInNameFn(r.query)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
