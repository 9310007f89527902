package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/kvcache/pkg/errors"
	"github.com/charlesng35/kvcache/pkg/response"
	appValidator "github.com/charlesng35/kvcache/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure it writes a 400 and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeValidation(err)))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(failures))
	for _, f := range failures {
		field := strings.ToLower(strings.ReplaceAll(f.Field, "_", " "))
		if field == "" {
			field = "field"
		}
		switch f.Tag {
		case "required":
			messages = append(messages, field+" is required")
		case "cachekey":
			messages = append(messages, fmt.Sprintf("%s must be 1-%d characters without control characters", field, appValidator.MaxKeyLength))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, f.Param))
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return strings.Join(messages, "; ")
}

// queryInt reads a non-negative integer query parameter. A missing value
// yields fallback.
func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
