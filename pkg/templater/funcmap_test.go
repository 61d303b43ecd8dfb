package templater_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"text/template"

	"github.com/treeverse/pgpack/pkg/templater"
)

func TestWrapFuncMapWithData(t *testing.T) {
	errUnsupported := errors.New("unsupported")
	baseFuncs := template.FuncMap{
		"schema": func(d templater.Data) string { return d.Schema },
		"require": func(d templater.Data, platform string) (string, error) {
			if d.Platform != platform {
				return "", fmt.Errorf("%s on %s: %w", d.Module, d.Platform, errUnsupported)
			}
			return "ok", nil
		},
		"three": func(d templater.Data) (string, string, error) { return "", "", nil },
	}

	cases := []struct {
		name     string
		funcName string
		args     []interface{}
		err      error
		result   string
	}{
		{name: "single return", funcName: "schema", result: "madlib"},
		{name: "value and nil error", funcName: "require", args: []interface{}{"postgres"}, result: "ok"},
		{name: "error", funcName: "require", args: []interface{}{"greenplum"}, err: errUnsupported},
		{name: "too many returns", funcName: "three", err: templater.ErrBadFuncRet},
	}

	data := templater.Data{Schema: "madlib", Platform: "postgres", Module: "svec"}
	funcs := templater.WrapFuncMapWithData(baseFuncs, data)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			argsVal := make([]reflect.Value, 0, len(c.args))
			for _, arg := range c.args {
				argsVal = append(argsVal, reflect.ValueOf(arg))
			}
			r := reflect.ValueOf(funcs[c.funcName]).Call(argsVal)
			if len(r) != 2 {
				t.Fatalf("Got %d return values: %+v", len(r), r)
			}
			var err error
			if e := r[1].Interface(); e != nil {
				err = e.(error)
			}
			if !errors.Is(err, c.err) {
				t.Fatalf("Got error %v when expecting %v", err, c.err)
			}
			if c.err != nil {
				return
			}
			if res := r[0].Interface().(string); res != c.result {
				t.Errorf("Got result %q when expecting %q", res, c.result)
			}
		})
	}
}
