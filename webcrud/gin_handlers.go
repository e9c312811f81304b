package webcrud

import (
	"github.com/gin-gonic/gin"
)

// MountGin registers the enabled routes on r under the binder prefix.
func (b *Binder[T, ID]) MountGin(r gin.IRouter) {
	g := r.Group(b.opts.Prefix, b.opts.GinMiddlewares...)
	for _, op := range Operations {
		if !b.enabled[op] {
			continue
		}
		path := "/" + string(op)
		if op.hasID() {
			path += "/:id"
		}
		g.POST(path, b.ginHandler(op))
	}
}

func (b *Binder[T, ID]) ginHandler(op Operation) gin.HandlerFunc {
	h := b.handler(op)
	return func(c *gin.Context) {
		status, body := b.serve(op, h, c.Request, c.Param("id"))
		c.JSON(status, body)
	}
}
