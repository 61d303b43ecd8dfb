package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/treeverse/pgpack/pkg/upgrade"
	"golang.org/x/term"
)

const (
	PgpackInteractive        = "PGPACK_INTERACTIVE"
	PgpackInteractiveDisable = "no"
	DeathMessage             = "Error executing command: {{.Error|red}}\n"
)

const tableTemplate = `{{ if .Title }}{{ .Title | bold }}
{{ end }}{{ .Table | table -}}
`

const conflictTemplate = `{{ "Upgrade aborted" | red | bold }}: user objects depend on objects this upgrade changes.
{{ .Table | table }}
{{- if .Tables }}
{{ "User table dependencies" | bold }}:
{{ join "\n" .Tables }}
{{ end }}
{{- if .ViewGraph }}
{{ "User view dependencies" | bold }}:
{{ .ViewGraph }}
{{ end }}
Drop or alter the listed objects, upgrade, then recreate them.
`

var isTerminal = true

//nolint:gochecknoinits
func init() {
	// disable colors if we're not attached to interactive TTY
	if !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv(PgpackInteractive) == PgpackInteractiveDisable {
		DisableColors()
	}
}

func DisableColors() {
	text.DisableColors()
	isTerminal = false
}

type Table struct {
	Headers []interface{}
	Rows    [][]interface{}
}

func WriteTo(tpl string, data interface{}, w io.Writer) {
	templ := template.New("output")
	templ.Funcs(template.FuncMap{
		"red": func(arg interface{}) string {
			return text.FgHiRed.Sprint(arg)
		},
		"yellow": func(arg interface{}) string {
			return text.FgHiYellow.Sprint(arg)
		},
		"green": func(arg interface{}) string {
			return text.FgHiGreen.Sprint(arg)
		},
		"bold": func(arg interface{}) string {
			return text.Bold.Sprint(arg)
		},
		"join": func(sep string, args []string) string {
			return strings.Join(args, sep)
		},
		"table": renderTable,
	})
	t := template.Must(templ.Parse(tpl))
	if err := t.Execute(w, data); err != nil {
		panic(err)
	}
}

// renderTable draws a boxed table on a terminal and tab separated rows
// otherwise.
func renderTable(tab *Table) string {
	if isTerminal {
		buf := new(bytes.Buffer)
		t := table.NewWriter()
		t.SetOutputMirror(buf)
		t.AppendHeader(tab.Headers)
		for _, row := range tab.Rows {
			t.AppendRow(row)
		}
		t.Render()
		return buf.String()
	}
	var b strings.Builder
	for _, row := range tab.Rows {
		for ic, cell := range row {
			b.WriteString(fmt.Sprint(cell))
			if ic < len(row)-1 {
				b.WriteString("\t")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func Write(tpl string, data interface{}) {
	WriteTo(tpl, data, os.Stdout)
}

func Die(err string, code int) {
	WriteTo(DeathMessage, struct{ Error string }{err}, os.Stderr)
	os.Exit(code)
}

func DieFmt(msg string, args ...interface{}) {
	Die(fmt.Sprintf(msg, args...), 1)
}

// DieErr reports err and exits. A dependency conflict also prints the
// objects blocking the upgrade.
func DieErr(err error) {
	var conflictErr *upgrade.DependencyConflictError
	if errors.As(err, &conflictErr) {
		WriteTo(conflictTemplate, struct {
			Table     *Table
			Tables    []string
			ViewGraph string
		}{conflictTable(conflictErr.Conflicts), conflictErr.TableDependencies, conflictErr.ViewGraph}, os.Stderr)
		os.Exit(1)
	}
	Die(err.Error(), 1)
}

func conflictTable(conflicts []upgrade.Conflict) *Table {
	t := &Table{Headers: []interface{}{"Kind", "Object", "Used By"}}
	for _, c := range conflicts {
		t.Rows = append(t.Rows, []interface{}{c.Kind.String(), c.Object, strings.Join(c.Users, "\n")})
	}
	return t
}

func PrintTable(title string, rows [][]interface{}, headers []interface{}) {
	Write(tableTemplate, struct {
		Title string
		Table *Table
	}{
		Title: title,
		Table: &Table{Headers: headers, Rows: rows},
	})
}
