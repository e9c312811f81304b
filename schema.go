package raadmin

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type FieldSet map[string]struct{}

func NewFieldSet(fields ...string) FieldSet {
	m := make(FieldSet, len(fields))
	for _, f := range fields {
		m[f] = struct{}{}
	}
	return m
}

func (fs FieldSet) Has(f string) bool {
	_, ok := fs[f]
	return ok
}

// columns is the allowlist of wire names for one entity. A wire name is the
// JSON tag name, the Go field name or the DB column name of a schema field.
type columns struct {
	table  string
	pk     *schema.Field
	byName map[string]*schema.Field
	fields []*schema.Field
}

func parseColumns(db *gorm.DB, model any) (*columns, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	sch := stmt.Schema
	if sch.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, sch.Name)
	}

	c := &columns{
		table:  sch.Table,
		pk:     sch.PrioritizedPrimaryField,
		byName: make(map[string]*schema.Field, len(sch.Fields)*3),
		fields: sch.Fields,
	}
	var visible []*schema.Field
	for _, f := range sch.Fields {
		if f.DBName == "" || jsonName(f) == "-" {
			continue
		}
		visible = append(visible, f)
	}
	// wire names win over column names, column names over Go names
	for _, f := range visible {
		c.byName[wireName(f)] = f
	}
	for _, f := range visible {
		if _, ok := c.byName[f.DBName]; !ok {
			c.byName[f.DBName] = f
		}
	}
	for _, f := range visible {
		if _, ok := c.byName[f.Name]; !ok {
			c.byName[f.Name] = f
		}
	}
	return c, nil
}

func (c *columns) resolve(name string) (*schema.Field, error) {
	f, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// flag resolves a column that may be hidden from the wire, such as a
// soft-delete marker tagged json:"-".
func (c *columns) flag(name string) (*schema.Field, error) {
	if f, err := c.resolve(name); err == nil {
		return f, nil
	}
	for _, f := range c.fields {
		if f.DBName != "" && (f.DBName == name || f.Name == name) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// decode copies payload into dst (a *T) through its JSON form and returns
// the columns the payload touched.
func (c *columns) decode(dst any, payload map[string]any) ([]*schema.Field, error) {
	wire := make(map[string]any, len(payload))
	fields := make([]*schema.Field, 0, len(payload))
	for k, v := range payload {
		f, err := c.resolve(k)
		if err != nil {
			return nil, err
		}
		if _, dup := wire[wireName(f)]; dup {
			continue
		}
		wire[wireName(f)] = v
		fields = append(fields, f)
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if err = json.Unmarshal(b, dst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return fields, nil
}

// assignments decodes payload through the entity type and returns column -> typed value.
func (c *columns) assignments(ctx context.Context, model any, payload map[string]any) (map[string]any, error) {
	fields, err := c.decode(model, payload)
	if err != nil {
		return nil, err
	}
	rv := reflect.Indirect(reflect.ValueOf(model))
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f == c.pk {
			continue
		}
		v, _ := f.ValueOf(ctx, rv)
		out[f.DBName] = v
	}
	return out, nil
}

func jsonName(f *schema.Field) string {
	tag := f.StructField.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func wireName(f *schema.Field) string {
	if n := jsonName(f); n != "" {
		return n
	}
	return f.Name
}

// normalizeValue turns JSON numbers into int64 when integral, float64 otherwise.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	}
	return v
}

// filterValue normalizes a filter value. A scalar or null matches by equality,
// a flat list of scalars matches any of its elements.
func filterValue(v any) (any, error) {
	v = normalizeValue(v)
	rv := reflect.ValueOf(v)
	if v == nil || isScalar(v) {
		return v, nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected a scalar or a list of scalars, got %T", ErrInvalidValue, v)
	}
	list := make([]any, rv.Len())
	for i := range list {
		e := normalizeValue(rv.Index(i).Interface())
		if e == nil || !isScalar(e) {
			return nil, fmt.Errorf("%w: list elements must be non-null scalars, got %T", ErrInvalidValue, e)
		}
		list[i] = e
	}
	return list, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case time.Time, driver.Valuer, []byte:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
