// Package templater expands module install script templates.
package templater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

// ScriptExtension is the extension of module install script templates.
const ScriptExtension = ".sql_in"

var ErrNoScripts = fmt.Errorf("%w: no install scripts", packerrors.ErrConfig)

// Data is passed to every template.
type Data struct {
	Schema      string
	LibraryPath string
	Platform    string
	ServerMajor int
	Module      string
}

// Renderer renders the templates found under <module>/ in fsys.
type Renderer struct {
	fsys fs.FS
	data Data
}

func NewRenderer(fsys fs.FS, data Data) *Renderer {
	return &Renderer{fsys: fsys, data: data}
}

// Script renders every template of module, sorted by path, into one script.
func (r *Renderer) Script(ctx context.Context, module string) (string, error) {
	names, err := r.scripts(module)
	if err != nil {
		return "", err
	}
	data := r.data
	data.Module = module
	var b strings.Builder
	for _, name := range names {
		body, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		if err := Expand(&b, name, string(body), data); err != nil {
			return "", err
		}
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	logging.FromContext(ctx).
		WithFields(logging.Fields{logging.ModuleFieldKey: module, "files": len(names)}).
		Debug("Rendered install script")
	return b.String(), nil
}

func (r *Renderer) scripts(module string) ([]string, error) {
	var names []string
	err := fs.WalkDir(r.fsys, module, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ScriptExtension) {
			names = append(names, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(names) == 0) {
		return nil, fmt.Errorf("%w: module %s", ErrNoScripts, module)
	}
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Expand executes the template text named name with data into w. Sprig
// functions are available, as are qualify, onPlatform and serverAtLeast.
func Expand(w io.Writer, name, text string, data Data) error {
	t, err := template.New(path.Base(name)).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(WrapFuncMapWithData(dataFuncs, data)).
		Parse(text)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %w", packerrors.ErrConfig, name, err)
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("%w: expand %s: %w", packerrors.ErrConfig, name, err)
	}
	return nil
}
