package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Strings is a []string that mapstructure can decode from a single
// comma-separated string or from a list of strings.
type Strings []string

// SecureString is a string that does not show up in logs or printed
// configuration.
type SecureString string

// OnlyString is a string that can decode only from a string. Revisions use
// it: YAML reads 1.10 as a number, and mapstructure would silently turn it
// back into "1.1".
type OnlyString string

var (
	stringsType     = reflect.TypeOf(Strings{})
	onlyStringType  = reflect.TypeOf(OnlyString(""))
	stringType      = reflect.TypeOf("")
	stringSliceType = reflect.TypeOf([]string{})
	anySliceType    = reflect.TypeOf([]interface{}{})

	ErrMustBeString = errors.New("must be a string")
)

// DecodeStrings is a mapstructure.DecodeHookFuncValue that decodes a single
// string value or a slice of strings into Strings. Empty elements are
// dropped.
func DecodeStrings(fromValue reflect.Value, toValue reflect.Value) (interface{}, error) {
	if toValue.Type() != stringsType {
		return fromValue.Interface(), nil
	}
	var parts []string
	switch fromValue.Type() {
	case stringType:
		parts = strings.Split(fromValue.String(), ",")
	case stringSliceType:
		parts = fromValue.Interface().([]string)
	case anySliceType:
		for _, v := range fromValue.Interface().([]interface{}) {
			parts = append(parts, fmt.Sprint(v))
		}
	default:
		return fromValue.Interface(), nil
	}
	out := make(Strings, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// DecodeOnlyString is a mapstructure.DecodeHookFuncValue that decodes a
// string value as an OnlyString and fails on all other values.
func DecodeOnlyString(fromValue reflect.Value, toValue reflect.Value) (interface{}, error) {
	if toValue.Type() != onlyStringType {
		return fromValue.Interface(), nil
	}
	if fromValue.Type() != stringType {
		return nil, fmt.Errorf("%w, not a %s", ErrMustBeString, fromValue.Type().String())
	}
	return OnlyString(fromValue.String()), nil
}

func (o OnlyString) String() string {
	return string(o)
}

// String returns an elided version. It is safe to call for logging.
func (SecureString) String() string {
	return "[SECRET]"
}

// SecureValue returns the actual value of s as a string.
func (s SecureString) SecureValue() string {
	return string(s)
}

func (s SecureString) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[SECRET]"), nil
}
