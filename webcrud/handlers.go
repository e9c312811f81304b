package webcrud

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/axgrid/raadmin"
	"github.com/axgrid/raadmin/transport"
	"go.uber.org/zap"
)

// handlerFunc runs one operation. id is the {id} path parameter, empty for routes without one.
type handlerFunc func(req *http.Request, id string) (any, error)

func (b *Binder[T, ID]) handler(op Operation) handlerFunc {
	switch op {
	case OpGetList:
		return b.getList
	case OpGetOne:
		return b.getOne
	case OpGetMany:
		return b.getMany
	case OpCreate:
		return b.create
	case OpUpdate:
		return b.update
	case OpUpdateMany:
		return b.updateMany
	case OpDelete:
		return b.deleteOne
	case OpDeleteMany:
		return b.deleteMany
	}
	return nil
}

// serve runs h and returns the status and body to write.
func (b *Binder[T, ID]) serve(op Operation, h handlerFunc, req *http.Request, id string) (int, any) {
	start := time.Now()
	out, err := h(req, id)
	status := http.StatusOK
	if err != nil {
		if errors.Is(err, raadmin.ErrNotFound) && !b.opts.StrictNotFound {
			out = transport.One[any](nil)
		} else {
			status = StatusFor(err)
			out = errorBody(status, err)
			b.logError(op, status, err)
		}
	}
	observe(b.resource, op, status, time.Since(start))
	return status, out
}

func (b *Binder[T, ID]) logError(op Operation, status int, err error) {
	fields := []zap.Field{zap.String("operation", string(op)), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		b.logger.Error("react-admin request failed", fields...)
		return
	}
	b.logger.Debug("react-admin request rejected", fields...)
}

func (b *Binder[T, ID]) getList(req *http.Request, _ string) (any, error) {
	p, err := transport.ParseListQuery(req.URL.Query())
	if err != nil {
		return nil, err
	}
	items, total, err := b.repo.GetList(req.Context(), p)
	if err != nil {
		return nil, err
	}
	data, err := b.rows(req.Context(), items)
	if err != nil {
		return nil, err
	}
	return transport.List(data, total), nil
}

func (b *Binder[T, ID]) getOne(req *http.Request, idStr string) (any, error) {
	id, err := transport.ParseID[ID](idStr)
	if err != nil {
		return nil, err
	}
	item, err := b.repo.GetOne(req.Context(), id)
	if err != nil {
		return nil, err
	}
	return b.one(req.Context(), item)
}

func (b *Binder[T, ID]) getMany(req *http.Request, _ string) (any, error) {
	ids, rest, err := transport.ParseIDFilter[ID](req.URL.Query())
	if err != nil {
		return nil, err
	}
	items, err := b.repo.GetMany(req.Context(), ids, rest)
	if err != nil {
		return nil, err
	}
	data, err := b.rows(req.Context(), items)
	if err != nil {
		return nil, err
	}
	return transport.One(data), nil
}

func (b *Binder[T, ID]) create(req *http.Request, _ string) (any, error) {
	payload, err := transport.DecodePayload(req.Body)
	if err != nil {
		return nil, err
	}
	item, err := b.repo.Create(req.Context(), payload)
	if err != nil {
		return nil, err
	}
	return b.one(req.Context(), item)
}

func (b *Binder[T, ID]) update(req *http.Request, idStr string) (any, error) {
	id, err := transport.ParseID[ID](idStr)
	if err != nil {
		return nil, err
	}
	payload, err := transport.DecodePayload(req.Body)
	if err != nil {
		return nil, err
	}
	item, err := b.repo.Update(req.Context(), id, payload)
	if err != nil {
		return nil, err
	}
	return b.one(req.Context(), item)
}

func (b *Binder[T, ID]) updateMany(req *http.Request, _ string) (any, error) {
	ids, _, err := transport.ParseIDFilter[ID](req.URL.Query())
	if err != nil {
		return nil, err
	}
	payload, err := transport.DecodePayload(req.Body)
	if err != nil {
		return nil, err
	}
	done, err := b.repo.UpdateMany(req.Context(), ids, payload)
	if err != nil {
		return nil, err
	}
	return transport.One(done), nil
}

func (b *Binder[T, ID]) deleteOne(req *http.Request, idStr string) (any, error) {
	id, err := transport.ParseID[ID](idStr)
	if err != nil {
		return nil, err
	}
	item, err := b.repo.Delete(req.Context(), id)
	if err != nil {
		return nil, err
	}
	return b.one(req.Context(), item)
}

func (b *Binder[T, ID]) deleteMany(req *http.Request, _ string) (any, error) {
	ids, _, err := transport.ParseIDFilter[ID](req.URL.Query())
	if err != nil {
		return nil, err
	}
	done, err := b.repo.DeleteMany(req.Context(), ids)
	if err != nil {
		return nil, err
	}
	return transport.One(done), nil
}

func (b *Binder[T, ID]) one(ctx context.Context, item T) (any, error) {
	if b.opts.Transform == nil {
		return transport.One[any](item), nil
	}
	dto, err := b.opts.Transform(ctx, item)
	if err != nil {
		return nil, err
	}
	return transport.One(dto), nil
}

func (b *Binder[T, ID]) rows(ctx context.Context, items []T) (any, error) {
	if b.opts.Transform == nil {
		return items, nil
	}
	return MapSlice(ctx, items, b.opts.Transform)
}
