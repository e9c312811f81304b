// Package raadmin binds a gorm model to the react-admin data-provider operations.
package raadmin

import (
	"context"

	"gorm.io/gorm"
)

type IDConstraint interface {
	~uint | ~uint64 | ~int | ~int64 | ~string
}

// Repo is the storage side of the eight react-admin operations.
type Repo[T any, ID IDConstraint] interface {
	GetList(ctx context.Context, p ListParams) (items []T, total int64, err error)
	GetOne(ctx context.Context, id ID) (T, error)
	GetMany(ctx context.Context, ids []ID, filter Filter) ([]T, error)
	Create(ctx context.Context, payload map[string]any) (T, error)
	Update(ctx context.Context, id ID, patch map[string]any) (T, error)
	UpdateMany(ctx context.Context, ids []ID, patch map[string]any) ([]ID, error)
	Delete(ctx context.Context, id ID) (T, error)
	DeleteMany(ctx context.Context, ids []ID) ([]ID, error)
	WithTx(tx *gorm.DB) Repo[T, ID]
}

// Filter is AND-combined equality: field -> value. A nil value matches NULL,
// a list of scalars matches any of them.
type Filter map[string]any

type Sort struct {
	Field string
	Order string // "ASC" | "DESC"
}

// Range selects rows Start..End of the filtered, ordered result. Both ends are inclusive.
type Range struct {
	Start int
	End   int
}

type ListParams struct {
	Filter Filter
	Sort   *Sort
	Range  *Range
}

// SoftDelete turns deletes into "Field = true" updates.
type SoftDelete struct {
	Field string
	// IncludeDeleted disables the implicit "Field = false" filter on GetList and GetMany.
	IncludeDeleted bool
}
