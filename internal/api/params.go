package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bay-scheduler-backend/internal/apperr"
)

// queryTime parses an optional RFC3339 instant.
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Invalid(key, "must be an RFC3339 timestamp with offset")
	}
	t = t.UTC()
	return &t, nil
}

// queryInt parses an optional integer.
func queryInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperr.Invalid(key, "must be an integer")
	}
	return &n, nil
}

// queryList splits a comma separated parameter, dropping blanks.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, part := range strings.Split(c.Query(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
