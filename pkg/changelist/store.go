package changelist

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/packerrors"
	"github.com/treeverse/pgpack/pkg/version"
)

const filePrefix = "changelist"

var ErrInvalidFileName = fmt.Errorf("%w: invalid changelist file name", packerrors.ErrConfig)

// Ref names a changelist document and the revision interval it covers.
type Ref struct {
	Name string
	From version.Revision
	To   version.Revision
}

func (r Ref) String() string {
	return fmt.Sprintf("%s (%s -> %s)", r.Name, r.From, r.To)
}

// ParseRef parses a changelist_<from>_<to>.yaml file name. ok is false for
// names that are not changelists at all.
func ParseRef(name string) (ref Ref, ok bool, err error) {
	ext := path.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return Ref{}, false, nil
	}
	parts := strings.Split(strings.TrimSuffix(name, ext), "_")
	if len(parts) != 3 || parts[0] != filePrefix {
		return Ref{}, false, nil
	}
	from, err := version.ParseRevision(parts[1])
	if err != nil {
		return Ref{}, true, fmt.Errorf("%w %s: %w", ErrInvalidFileName, name, err)
	}
	to, err := version.ParseRevision(parts[2])
	if err != nil {
		return Ref{}, true, fmt.Errorf("%w %s: %w", ErrInvalidFileName, name, err)
	}
	if to.LessThan(from) {
		return Ref{}, true, fmt.Errorf("%w %s: ends before it starts", ErrInvalidFileName, name)
	}
	return Ref{Name: name, From: from, To: to}, true, nil
}

// Store reads changelist documents from the top level of a file system.
type Store struct {
	fsys fs.FS
}

func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// List returns a Ref for every changelist document in the store.
func (s *Store) List(ctx context.Context) ([]Ref, error) {
	dirEntries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list changelists: %w", err)
	}
	log := logging.FromContext(ctx)
	var refs []Ref
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ref, ok, err := ParseRef(de.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			log.WithField("file", de.Name()).Trace("Skipping non changelist file")
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Load decodes the document behind ref.
func (s *Store) Load(ctx context.Context, ref Ref) (*Document, error) {
	f, err := s.fsys.Open(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("open changelist: %w", err)
	}
	defer func() { _ = f.Close() }()
	logging.FromContext(ctx).WithField("file", ref.Name).Debug("Loading changelist")
	return DecodeDocument(f, ref)
}
