// Package params maps caller-facing query parameter names onto the names an
// API expects before a request is composed.
package params

import (
	"github.com/abdul-hamid-achik/extbridge/packages/http"
)

// Mapping describes how one caller parameter is forwarded.
type Mapping struct {
	// Name is the caller-facing parameter name.
	Name string
	// APIName is the name sent to the API. Empty keeps Name.
	APIName string
	// ValueMap transforms the value before it is sent.
	ValueMap func(any) any
	// RemoveEmpty drops the parameter when its value is "" or nil.
	RemoveEmpty bool
}

// MapParams forwards every parameter named in mapping, in mapping order.
// Parameters absent from the input are skipped and parameters absent from
// the mapping are dropped.
func MapParams(in http.Params, mapping []Mapping) http.Params {
	out := http.Params{}
	for _, m := range mapping {
		value, ok := in.Get(m.Name)
		if !ok {
			continue
		}
		if m.RemoveEmpty && isEmpty(value) {
			continue
		}
		if m.ValueMap != nil {
			value = m.ValueMap(value)
		}

		name := m.APIName
		if name == "" {
			name = m.Name
		}
		out = out.Add(name, value)
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Rename forwards every parameter in input order, renaming those listed in
// names and dropping empty values. Repeated keys are kept.
func Rename(in http.Params, names map[string]string) http.Params {
	var out http.Params
	for _, p := range in {
		mapping := []Mapping{{Name: p.Key, APIName: names[p.Key], RemoveEmpty: true}}
		out = append(out, MapParams(http.Params{p}, mapping)...)
	}
	return out
}
