// Package transport holds the react-admin wire contract: the JSON-encoded
// sort, filter and range query parameters, id lists and the {data,total} envelope.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/axgrid/raadmin"
)

// ErrMalformed marks requests whose query parameters or body are not the expected JSON shape.
var ErrMalformed = errors.New("malformed request")

// IDKey is the filter key react-admin uses for id lists.
const IDKey = "id"

// ParseListQuery reads ?sort=["field","ASC"]&filter={...}&range=[start,end].
// Every parameter is optional.
func ParseListQuery(values url.Values) (raadmin.ListParams, error) {
	var p raadmin.ListParams

	if s := values.Get("sort"); s != "" {
		var pair []string
		if err := unmarshal(s, &pair); err != nil || len(pair) != 2 {
			return p, malformed("sort", `expected ["field","ASC|DESC"]`, err)
		}
		p.Sort = &raadmin.Sort{Field: pair[0], Order: pair[1]}
	}

	filter, err := ParseFilter(values)
	if err != nil {
		return p, err
	}
	p.Filter = filter

	if s := values.Get("range"); s != "" {
		var bounds []int
		if err := unmarshal(s, &bounds); err != nil || len(bounds) != 2 {
			return p, malformed("range", "expected [start,end]", err)
		}
		p.Range = &raadmin.Range{Start: bounds[0], End: bounds[1]}
	}

	return p, nil
}

// ParseFilter reads ?filter={...}. A missing filter is an empty one.
func ParseFilter(values url.Values) (raadmin.Filter, error) {
	filter := raadmin.Filter{}
	s := values.Get("filter")
	if s == "" {
		return filter, nil
	}
	if err := unmarshal(s, &filter); err != nil {
		return nil, malformed("filter", "expected a JSON object", err)
	}
	if filter == nil {
		filter = raadmin.Filter{}
	}
	return filter, nil
}

// ParseIDFilter reads ?filter={"id":[...], ...} and splits it into the id list and the rest.
// A scalar id is a one-element list.
func ParseIDFilter[ID raadmin.IDConstraint](values url.Values) ([]ID, raadmin.Filter, error) {
	filter, err := ParseFilter(values)
	if err != nil {
		return nil, nil, err
	}
	raw, ok := filter[IDKey]
	if !ok {
		return nil, nil, malformed("filter", `missing "id" list`, nil)
	}
	delete(filter, IDKey)

	list, isList := raw.([]any)
	if !isList {
		list = []any{raw}
	}
	ids := make([]ID, 0, len(list))
	for _, v := range list {
		if v == nil {
			return nil, nil, malformed("filter", `"id" must not contain null`, nil)
		}
		id, err := ParseID[ID](fmt.Sprint(v))
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	return ids, filter, nil
}

// DecodePayload reads a JSON object body for create and update calls.
func DecodePayload(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, malformed("body", "expected a JSON object", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("body", "unexpected data after the JSON object", err)
	}
	return payload, nil
}

// ParseID parses a path or filter id into ID, including named id types.
func ParseID[ID raadmin.IDConstraint](s string) (ID, error) {
	var id ID
	s = strings.TrimSpace(s)
	v := reflect.ValueOf(&id).Elem()
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
		return id, nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return id, malformed("id", strconv.Quote(s), err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return id, malformed("id", strconv.Quote(s), err)
		}
		v.SetUint(n)
	}
	return id, nil
}

func unmarshal(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(v)
}

func malformed(param, detail string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %s: %w", ErrMalformed, param, detail, err)
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformed, param, detail)
}
