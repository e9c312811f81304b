// Package webcrud mounts a raadmin.Repo as the eight react-admin data-provider
// routes on gin or chi. Every route is a POST under a common prefix.
package webcrud

import (
	"net/http"
	"strings"

	"github.com/axgrid/raadmin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Operation string

const (
	OpGetList    Operation = "getList"
	OpGetOne     Operation = "getOne"
	OpGetMany    Operation = "getMany"
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpUpdateMany Operation = "updateMany"
	OpDelete     Operation = "delete"
	OpDeleteMany Operation = "deleteMany"
)

const (
	DefaultPrefix = "/ra"
	DefaultTag    = "React Admin routers"
)

// Operations lists every route in mount order.
var Operations = []Operation{
	OpGetList, OpGetOne, OpGetMany, OpCreate, OpUpdate, OpUpdateMany, OpDelete, OpDeleteMany,
}

func (op Operation) hasID() bool {
	return op == OpGetOne || op == OpUpdate || op == OpDelete
}

type Options[T any] struct {
	// Prefix the routes are mounted under. Defaults to DefaultPrefix.
	Prefix string
	// Tags label the routes in Routes/Describe. Defaults to DefaultTag.
	Tags []string
	// IncludeInSchema lists the routes in Describe.
	IncludeInSchema bool
	// Disable leaves the given operations unmounted.
	Disable []Operation
	// Extra middlewares run before every route of this binder.
	GinMiddlewares []gin.HandlerFunc
	ChiMiddlewares []func(http.Handler) http.Handler
	// StrictNotFound answers 404 for a missing id instead of {"data":null}.
	StrictNotFound bool
	// Transform maps every returned row before it is written.
	Transform TransformFn[T, any]
	Logger    *zap.Logger
	// Resource labels logs and metrics. Defaults to the repo's table name.
	Resource string
}

type Binder[T any, ID raadmin.IDConstraint] struct {
	repo     raadmin.Repo[T, ID]
	opts     Options[T]
	logger   *zap.Logger
	resource string
	enabled  map[Operation]bool
}

type tableNamer interface {
	Table() string
}

func New[T any, ID raadmin.IDConstraint](repo raadmin.Repo[T, ID], opts Options[T]) *Binder[T, ID] {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if len(opts.Tags) == 0 {
		opts.Tags = []string{DefaultTag}
	}
	if opts.Resource == "" {
		if tn, ok := repo.(tableNamer); ok {
			opts.Resource = tn.Table()
		} else {
			opts.Resource = strings.Trim(opts.Prefix, "/")
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	enabled := make(map[Operation]bool, len(Operations))
	for _, op := range Operations {
		enabled[op] = true
	}
	for _, op := range opts.Disable {
		delete(enabled, op)
	}

	return &Binder[T, ID]{
		repo:     repo,
		opts:     opts,
		logger:   logger.With(zap.String("resource", opts.Resource)),
		resource: opts.Resource,
		enabled:  enabled,
	}
}

func (b *Binder[T, ID]) Prefix() string { return b.opts.Prefix }

// Route describes one mounted endpoint.
type Route struct {
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Operation Operation `json:"operation"`
	Resource  string    `json:"resource"`
	Tags      []string  `json:"tags"`
}

// Routes returns the enabled routes with {id} path parameters.
func (b *Binder[T, ID]) Routes() []Route {
	out := make([]Route, 0, len(b.enabled))
	for _, op := range Operations {
		if !b.enabled[op] {
			continue
		}
		path := b.opts.Prefix + "/" + string(op)
		if op.hasID() {
			path += "/{id}"
		}
		out = append(out, Route{
			Method:    http.MethodPost,
			Path:      path,
			Operation: op,
			Resource:  b.resource,
			Tags:      b.opts.Tags,
		})
	}
	return out
}

func (b *Binder[T, ID]) IncludeInSchema() bool { return b.opts.IncludeInSchema }

type Describer interface {
	Routes() []Route
	IncludeInSchema() bool
}

// Describe collects the routes of every binder that opted into the schema listing.
func Describe(binders ...Describer) []Route {
	out := make([]Route, 0)
	for _, d := range binders {
		if d.IncludeInSchema() {
			out = append(out, d.Routes()...)
		}
	}
	return out
}
