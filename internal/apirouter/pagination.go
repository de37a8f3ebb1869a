package apirouter

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageParams holds the parsed limit/offset query parameters. Zero values
// mean "not provided"; the store applies its own defaults and clamps.
type PageParams struct {
	Limit  int
	Offset int
}

// ParsePageParams parses the "limit" and "offset" query parameters.
// Non-integer values are rejected; range clamping is left to the store so
// the API and direct store callers behave the same.
func ParsePageParams(c *gin.Context) (PageParams, *ErrorResponse) {
	var params PageParams

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, queryIntError("limit", raw)
		}
		params.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return params, queryIntError("offset", raw)
		}
		params.Offset = offset
	}

	return params, nil
}

func queryIntError(field, received string) *ErrorResponse {
	return &ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "validation_error",
		Errors: []FieldError{{
			Field:    field,
			Code:     "invalid_type",
			Message:  field + " must be an integer",
			Expected: "integer",
			Received: received,
		}},
	}
}
