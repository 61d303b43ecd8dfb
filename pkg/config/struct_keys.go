package config

import (
	"reflect"
	"strings"
)

// GetStructKeys returns the dotted key of every leaf field of a nested
// struct, named by the tag or else the field name. Embedded structs tagged
// with ",<squashValue>" add no name component, as mapstructure squashes them.
// Pointers are followed; maps and slices are leaves.
func GetStructKeys(typ reflect.Type, tag, squashValue string) []string {
	var keys []string
	walkStructKeys(typ, tag, ","+squashValue, nil, func(path []string) {
		keys = append(keys, strings.Join(path, "."))
	})
	return keys
}

func walkStructKeys(typ reflect.Type, tag, squashSuffix string, path []string, leaf func([]string)) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		leaf(path)
		return
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, tagged := field.Tag.Lookup(tag)
		if !tagged {
			name = field.Name
		}
		next := path[:len(path):len(path)]
		if squashed := strings.HasSuffix(name, squashSuffix); !squashed {
			next = append(next, name)
		}
		walkStructKeys(field.Type, tag, squashSuffix, next, leaf)
	}
}
