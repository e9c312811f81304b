package webcrud

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi registers the enabled routes on r under the binder prefix.
func (b *Binder[T, ID]) MountChi(r chi.Router) {
	r.Route(b.opts.Prefix, func(r chi.Router) {
		r.Use(b.opts.ChiMiddlewares...)
		for _, op := range Operations {
			if !b.enabled[op] {
				continue
			}
			path := "/" + string(op)
			if op.hasID() {
				path += "/{id}"
			}
			r.Post(path, b.chiHandler(op))
		}
	})
}

func (b *Binder[T, ID]) chiHandler(op Operation) http.HandlerFunc {
	h := b.handler(op)
	return func(w http.ResponseWriter, req *http.Request) {
		status, body := b.serve(op, h, req, chi.URLParam(req, "id"))
		WriteJSON(w, status, body)
	}
}
