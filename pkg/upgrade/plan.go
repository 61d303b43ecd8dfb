package upgrade

import (
	"io"
	"strings"

	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/version"
)

type Status string

const (
	StatusUpToDate Status = "up-to-date"
	StatusPlanned  Status = "planned"
)

// ModuleScript is the cleaned install script of one module.
type ModuleScript struct {
	Module string
	SQL    string
}

// Plan is the DDL upgrading a schema from one revision to another.
type Plan struct {
	Schema    string
	From      version.Revision
	To        version.Revision
	Status    Status
	ChangeSet *changelist.ChangeSet
	Drops     []string
	Modules   []ModuleScript
	Stamp     string
}

// Empty reports whether the plan has nothing to execute.
func (p *Plan) Empty() bool {
	return p.Status != StatusPlanned
}

// Script renders the statements of the plan in execution order, without a
// transaction block.
func (p *Plan) Script() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	for _, d := range p.Drops {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	for _, m := range p.Modules {
		b.WriteString("\n-- module: ")
		b.WriteString(m.Module)
		b.WriteByte('\n')
		b.WriteString(m.SQL)
		if !strings.HasSuffix(m.SQL, "\n") {
			b.WriteByte('\n')
		}
	}
	if p.Stamp != "" {
		b.WriteByte('\n')
		b.WriteString(p.Stamp)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo writes the plan wrapped in a transaction block.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "BEGIN;\n"+p.Script()+"COMMIT;\n")
	return int64(n), err
}
