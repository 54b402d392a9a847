package http

import (
	"fmt"
	neturl "net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// RequestType selects how a successful response body is decoded.
type RequestType string

const (
	// RequestTypeJSON decodes the body as JSON into an any value.
	RequestTypeJSON RequestType = "json"
	// RequestTypeStream reads the whole body and returns it as []byte.
	RequestTypeStream RequestType = "stream"
)

// Param is a single query parameter. Value may be a string, a []string,
// a number, a bool or nil.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered list of query parameters. Serialization keeps the
// order in which parameters were added.
type Params []Param

// Add appends a parameter and returns the extended list.
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// Get returns the first value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return nil, false
}

// Encode serializes the parameters. Slice values become repeated key[]=value
// entries, everything else key=value.
func (p Params) Encode() string {
	var b strings.Builder
	write := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(neturl.QueryEscape(value))
	}

	for _, param := range p {
		key := neturl.QueryEscape(param.Key)
		switch v := param.Value.(type) {
		case []string:
			for _, item := range v {
				write(key+"[]", item)
			}
		case []any:
			for _, item := range v {
				write(key+"[]", formatParam(item))
			}
		case []byte:
			write(key, string(v))
		default:
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
				for i := range rv.Len() {
					write(key+"[]", formatParam(rv.Index(i).Interface()))
				}
				continue
			}
			write(key, formatParam(v))
		}
	}
	return b.String()
}

func formatParam(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// RequestOptions describes a single logical request. The zero value is a
// GET decoded as JSON without de-duplication.
type RequestOptions struct {
	Method      string
	QueryParams Params
	Headers     map[string]string
	Body        []byte
	RequestType RequestType

	// Deduplicate routes the request through the client's coordinator so
	// that concurrent requests for the same URL share one transport call.
	Deduplicate bool

	// WaitTimeout bounds how long a de-duplicated request waits for an
	// in-flight owner. Zero uses the client default.
	WaitTimeout time.Duration
}

// BuildURL appends params to endpoint. Parameters already present on the
// endpoint are kept in front.
func BuildURL(endpoint string, params Params) (string, error) {
	if err := ValidateURL(endpoint); err != nil {
		return "", err
	}
	if len(params) == 0 {
		return endpoint, nil
	}

	u, err := neturl.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}

	encoded := params.Encode()
	if u.RawQuery == "" {
		u.RawQuery = encoded
	} else {
		u.RawQuery = u.RawQuery + "&" + encoded
	}
	return u.String(), nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
