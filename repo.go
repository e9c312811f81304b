package raadmin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

type RepoConfig struct {
	// Optional soft-delete policy. Nil means deletes remove rows.
	SoftDelete *SoftDelete
	// Narrow sorting/filtering further than the entity columns. Empty means every column.
	SortableFields   FieldSet
	FilterableFields FieldSet
	Preloads         []string
	// Scopes for multi-tenant/ACL, e.g. func(db) db.Where("user_id = ?", uid)
	Scopes []func(*gorm.DB) *gorm.DB
}

type GormRepo[T any, ID IDConstraint] struct {
	db      *gorm.DB
	cfg     RepoConfig
	cols    *columns
	softCol string
	inTx    bool
}

// NewGormRepo parses T with gorm's schema parser. T must have a primary key, and the
// soft-delete field, when set, must be one of its columns.
func NewGormRepo[T any, ID IDConstraint](db *gorm.DB, cfg RepoConfig) (*GormRepo[T, ID], error) {
	cols, err := parseColumns(db, new(T))
	if err != nil {
		return nil, err
	}
	r := &GormRepo[T, ID]{db: db, cfg: cfg, cols: cols}
	if cfg.SoftDelete != nil && cfg.SoftDelete.Field != "" {
		f, err := cols.flag(cfg.SoftDelete.Field)
		if err != nil {
			return nil, fmt.Errorf("soft delete field: %w", err)
		}
		r.softCol = f.DBName
	}
	return r, nil
}

func (r *GormRepo[T, ID]) Table() string { return r.cols.table }

func (r *GormRepo[T, ID]) PrimaryKey() string { return r.cols.pk.DBName }

func (r *GormRepo[T, ID]) WithTx(tx *gorm.DB) Repo[T, ID] {
	cp := *r
	cp.db = tx
	cp.inTx = true
	return &cp
}

func (r *GormRepo[T, ID]) GetList(ctx context.Context, p ListParams) (items []T, total int64, err error) {
	conds, err := r.filterConds(p.Filter)
	if err != nil {
		return nil, 0, err
	}
	order, err := r.orderBy(p.Sort)
	if err != nil {
		return nil, 0, err
	}
	if p.Range != nil && p.Range.Start < 0 {
		return nil, 0, fmt.Errorf("%w: negative start %d", ErrInvalidRange, p.Range.Start)
	}

	items = make([]T, 0)
	err = r.read(ctx, func(tx *gorm.DB) error {
		q := r.base(tx)
		for _, c := range conds {
			q = q.Where(c)
		}

		// total is taken before ordering and pagination
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 {
			return nil
		}

		q = q.Order(order)
		if rg := p.Range; rg != nil {
			if rg.End < rg.Start {
				return nil
			}
			q = q.Offset(rg.Start).Limit(rg.End - rg.Start + 1)
		}
		return r.applyPreloads(q).Find(&items).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormRepo[T, ID]) GetOne(ctx context.Context, id ID) (T, error) {
	var out T
	err := r.read(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = r.takeWhere(tx, r.pkEq(id))
		return err
	})
	return out, err
}

func (r *GormRepo[T, ID]) GetMany(ctx context.Context, ids []ID, filter Filter) ([]T, error) {
	out := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	conds, err := r.filterConds(filter)
	if err != nil {
		return nil, err
	}
	err = r.read(ctx, func(tx *gorm.DB) error {
		q := r.applyPreloads(r.base(tx)).Where(r.pkIn(ids))
		for _, c := range conds {
			q = q.Where(c)
		}
		return q.Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts payload and returns the stored row. Scopes only narrow the
// re-read, so a row outside them comes back as written.
func (r *GormRepo[T, ID]) Create(ctx context.Context, payload map[string]any) (T, error) {
	var out T
	if len(payload) == 0 {
		return out, ErrEmptyPayload
	}
	in := new(T)
	fields, err := r.cols.decode(in, payload)
	if err != nil {
		return out, err
	}
	// given columns, plus every column without a DB default so it is stored as its zero value
	seen := NewFieldSet()
	selected := make([]string, 0, len(r.cols.pk.Schema.Fields))
	for _, f := range fields {
		seen[f.DBName] = struct{}{}
		selected = append(selected, f.DBName)
	}
	for _, f := range r.cols.pk.Schema.Fields {
		if f.DBName != "" && f.Creatable && !f.HasDefaultValue && !seen.Has(f.DBName) {
			selected = append(selected, f.DBName)
		}
	}

	err = r.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Select(selected).Create(in).Error; err != nil {
			return err
		}
		// re-read so server-side defaults are part of the answer
		pk, _ := r.cols.pk.ValueOf(ctx, reflect.ValueOf(in).Elem())
		var err error
		out, err = r.takeWhere(tx, clause.Eq{Column: clause.Column{Name: r.cols.pk.DBName}, Value: pk})
		if errors.Is(err, gorm.ErrRecordNotFound) && len(r.cfg.Scopes) > 0 {
			// inserted outside the caller's scopes: answer with what was written
			out, err = *in, nil
		}
		return err
	})
	return out, err
}

func (r *GormRepo[T, ID]) Update(ctx context.Context, id ID, patch map[string]any) (T, error) {
	var out T
	if len(patch) == 0 {
		return out, ErrEmptyPayload
	}
	values, err := r.cols.assignments(ctx, new(T), patch)
	if err != nil {
		return out, err
	}
	err = r.write(ctx, func(tx *gorm.DB) error {
		if len(values) > 0 {
			// Only the given keys; GORM binds the values as parameters
			if err := r.base(tx).Where(r.pkEq(id)).Updates(values).Error; err != nil {
				return err
			}
		}
		var err error
		out, err = r.takeWhere(tx, r.pkEq(id))
		return err
	})
	return out, err
}

func (r *GormRepo[T, ID]) UpdateMany(ctx context.Context, ids []ID, patch map[string]any) ([]ID, error) {
	if len(patch) == 0 {
		return nil, ErrEmptyPayload
	}
	values, err := r.cols.assignments(ctx, new(T), patch)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 || len(values) == 0 {
		return ids, nil
	}
	err = r.write(ctx, func(tx *gorm.DB) error {
		return r.base(tx).Where(r.pkIn(ids)).Updates(values).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete returns the row as it was before a hard delete, or after flagging it.
func (r *GormRepo[T, ID]) Delete(ctx context.Context, id ID) (T, error) {
	var out T
	err := r.write(ctx, func(tx *gorm.DB) error {
		var err error
		if out, err = r.takeWhere(tx, r.pkEq(id)); err != nil {
			return err
		}
		if r.softCol == "" {
			var z T
			return r.base(tx).Unscoped().Where(r.pkEq(id)).Delete(&z).Error
		}
		if err = r.base(tx).Where(r.pkEq(id)).Update(r.softCol, true).Error; err != nil {
			return err
		}
		out, err = r.takeWhere(tx, r.pkEq(id))
		return err
	})
	return out, err
}

func (r *GormRepo[T, ID]) DeleteMany(ctx context.Context, ids []ID) ([]ID, error) {
	if len(ids) == 0 {
		return ids, nil
	}
	err := r.write(ctx, func(tx *gorm.DB) error {
		if r.softCol == "" {
			var z T
			return r.base(tx).Unscoped().Where(r.pkIn(ids)).Delete(&z).Error
		}
		return r.base(tx).Where(r.pkIn(ids)).Update(r.softCol, true).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ---------- internals ----------

// read runs fn on one pooled connection which is released on every exit path.
func (r *GormRepo[T, ID]) read(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.inTx {
		return wrapError(fn(r.db.WithContext(ctx)))
	}
	return wrapError(r.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		return fn(tx.Session(&gorm.Session{}))
	}))
}

// write runs fn in a transaction committed before returning.
func (r *GormRepo[T, ID]) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.inTx {
		return wrapError(fn(r.db.WithContext(ctx)))
	}
	return wrapError(r.db.WithContext(ctx).Transaction(fn))
}

func (r *GormRepo[T, ID]) base(tx *gorm.DB) *gorm.DB {
	q := tx.Model(new(T))
	for _, s := range r.cfg.Scopes {
		q = q.Scopes(s)
	}
	return q
}

func (r *GormRepo[T, ID]) takeWhere(tx *gorm.DB, cond clause.Expression) (T, error) {
	var out T
	err := r.applyPreloads(r.base(tx)).Where(cond).Take(&out).Error
	return out, err
}

func (r *GormRepo[T, ID]) applyPreloads(db *gorm.DB) *gorm.DB {
	for _, p := range r.cfg.Preloads {
		db = db.Preload(p)
	}
	return db
}

func (r *GormRepo[T, ID]) pkEq(id ID) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: r.cols.pk.DBName}, Value: id}
}

func (r *GormRepo[T, ID]) pkIn(ids []ID) clause.Expression {
	return clause.IN{Column: clause.Column{Name: r.cols.pk.DBName}, Values: toAnySlice(ids)}
}

func (r *GormRepo[T, ID]) orderBy(s *Sort) (clause.OrderByColumn, error) {
	col := clause.OrderByColumn{Column: clause.Column{Name: r.cols.pk.DBName}}
	if s == nil || strings.TrimSpace(s.Field) == "" {
		return col, nil
	}
	f, err := r.cols.resolve(s.Field)
	if err != nil {
		return col, fmt.Errorf("%w: %w", ErrInvalidSort, err)
	}
	if len(r.cfg.SortableFields) > 0 && !r.cfg.SortableFields.Has(s.Field) && !r.cfg.SortableFields.Has(f.DBName) {
		return col, fmt.Errorf("%w: sorting by field '%s' is not allowed", ErrInvalidSort, s.Field)
	}
	switch strings.ToUpper(strings.TrimSpace(s.Order)) {
	case "", "ASC":
	case "DESC":
		col.Desc = true
	default:
		return col, fmt.Errorf("%w: order must be ASC or DESC, got %q", ErrInvalidSort, s.Order)
	}
	col.Column.Name = f.DBName
	return col, nil
}

// filterConds resolves filter keys to columns and injects the soft-delete
// exclusion. The exclusion replaces any caller value for the flag.
func (r *GormRepo[T, ID]) filterConds(filter Filter) ([]clause.Expression, error) {
	byCol := make(map[string]any, len(filter)+1)
	for name, v := range filter {
		f, err := r.resolveFilter(name)
		if err != nil {
			return nil, err
		}
		if len(r.cfg.FilterableFields) > 0 && !r.cfg.FilterableFields.Has(name) && !r.cfg.FilterableFields.Has(f.DBName) {
			return nil, fmt.Errorf("%w: filtering by field '%s' is not allowed", ErrUnknownField, name)
		}
		val, err := filterValue(v)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}
		byCol[f.DBName] = val
	}
	if r.excludesDeleted() {
		byCol[r.softCol] = false
	}

	names := make([]string, 0, len(byCol))
	for c := range byCol {
		names = append(names, c)
	}
	sort.Strings(names)
	conds := make([]clause.Expression, 0, len(names))
	for _, c := range names {
		conds = append(conds, clause.Eq{Column: clause.Column{Name: c}, Value: byCol[c]})
	}
	return conds, nil
}

// resolveFilter also accepts a hidden soft-delete flag once deleted rows are included.
func (r *GormRepo[T, ID]) resolveFilter(name string) (*schema.Field, error) {
	f, err := r.cols.resolve(name)
	if err == nil || r.softCol == "" || !r.cfg.SoftDelete.IncludeDeleted {
		return f, err
	}
	if flag, ferr := r.cols.flag(name); ferr == nil && flag.DBName == r.softCol {
		return flag, nil
	}
	return nil, err
}

func (r *GormRepo[T, ID]) excludesDeleted() bool {
	return r.softCol != "" && !r.cfg.SoftDelete.IncludeDeleted
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
