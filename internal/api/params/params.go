// Package params reads common query and path parameters.
package params

import (
	"strconv"

	"course-ledger/internal/domain/billing"

	"github.com/gin-gonic/gin"
)

// Page reads ?page=&page_size=; bad values fall back to defaults.
func Page(c *gin.Context) billing.Page {
	n, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return billing.Page{Number: n, Size: size}.Normalize()
}

// ID parses a positive numeric path parameter.
func ID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, billing.InvalidInput("Invalid " + name)
	}
	return uint(v), nil
}

// Listing is the envelope for paginated responses.
func Listing[T any](items []T, total int64, page billing.Page) gin.H {
	if items == nil {
		items = []T{}
	}
	return gin.H{
		"items":     items,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	}
}
