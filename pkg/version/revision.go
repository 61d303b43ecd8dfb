package version

import (
	"errors"
	"fmt"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidRevision = errors.New("invalid revision")
	ErrMissingRevision = errors.New("missing revision")
)

// Revision is a dotted release identifier of the managed schema. Revisions
// compare component-wise, so "1.9" < "1.10" < "1.10.1".
type Revision struct {
	v *goversion.Version
}

func ParseRevision(s string) (Revision, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Revision{}, ErrMissingRevision
	}
	v, err := goversion.NewVersion(s)
	if err != nil {
		return Revision{}, fmt.Errorf("%w %q: %s", ErrInvalidRevision, s, err)
	}
	return Revision{v: v}, nil
}

func MustParseRevision(s string) Revision {
	r, err := ParseRevision(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Revision) IsZero() bool {
	return r.v == nil
}

// Compare returns -1, 0 or 1. The zero Revision sorts before any parsed one.
func (r Revision) Compare(other Revision) int {
	switch {
	case r.v == nil && other.v == nil:
		return 0
	case r.v == nil:
		return -1
	case other.v == nil:
		return 1
	}
	return r.v.Compare(other.v)
}

func (r Revision) Equal(other Revision) bool {
	return r.Compare(other) == 0
}

func (r Revision) LessThan(other Revision) bool {
	return r.Compare(other) < 0
}

func (r Revision) GreaterThanOrEqual(other Revision) bool {
	return r.Compare(other) >= 0
}

// Ordinal returns the numeric components of the revision.
func (r Revision) Ordinal() []int {
	if r.v == nil {
		return nil
	}
	return r.v.Segments()
}

// Key is a canonical form equal for revisions that compare equal ("1.10" and "1.10.0").
func (r Revision) Key() string {
	if r.v == nil {
		return ""
	}
	return r.v.String()
}

// String returns the revision as it was written.
func (r Revision) String() string {
	if r.v == nil {
		return ""
	}
	return r.v.Original()
}

type revisionFile struct {
	Version yaml.Node `yaml:"version"`
}

// ReadRevisionFile reads the "version" key of a Version.yml file. The raw
// scalar is used so "1.10" is not read as the float 1.1.
func ReadRevisionFile(path string) (Revision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Revision{}, err
	}
	var f revisionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Revision{}, fmt.Errorf("%s: %w", path, err)
	}
	if f.Version.Kind != yaml.ScalarNode {
		return Revision{}, fmt.Errorf("%s: %w", path, ErrMissingRevision)
	}
	return ParseRevision(f.Version.Value)
}
