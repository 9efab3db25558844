// README: Base handler utilities (JSON helpers, caller extraction, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coload/internal/http/middleware"
	"coload/internal/modules/matching"
	"coload/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the ids this service issues and stores: short and
// limited to letters, digits, '-' and '_'.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func callerFrom(c *gin.Context) matching.Caller {
	return matching.Caller{
		UID:       middleware.CallerUID(c),
		CompanyID: types.ID(middleware.CallerCompany(c)),
		Admin:     middleware.CallerIsAdmin(c),
	}
}

func writeMatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrBadRequest), errors.Is(err, matching.ErrNoCompany):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, matching.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, matching.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, matching.ErrInvalidState), errors.Is(err, matching.ErrConflict), errors.Is(err, matching.ErrJobRunning):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
