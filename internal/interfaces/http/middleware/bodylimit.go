package middleware

import (
	"net/http"

	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at maxBytes. Routes named in overrides, by
// their gin full path, get their own cap instead; the bulk import route is
// the usual case. A declared Content-Length over the cap is rejected before
// the handler runs, chunked bodies fail on read.
func BodyLimit(maxBytes int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if l, ok := overrides[c.FullPath()]; ok {
			limit = l
		}
		if c.Request.ContentLength > limit {
			abort(c, dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
