package ginutil

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QueryInt extracts an integer from query parameters with default value
func QueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// ParamUUID extracts a canonical UUID string from path parameters
func ParamUUID(c *gin.Context, key string) (string, error) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Pagination reads page/limit query params, clamping limit to [1,100]
func Pagination(c *gin.Context) (page, limit int) {
	page = QueryInt(c, "page", 1)
	limit = QueryInt(c, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
