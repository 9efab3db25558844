// README: Operator endpoints: rejection override and on-demand matching runs.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"coload/internal/modules/matching"
	"coload/internal/types"
)

type RejectionClearer interface {
	ClearRejection(ctx context.Context, caller matching.Caller, a, b types.ID) error
}

type JobRunner interface {
	RunOnce(ctx context.Context) (matching.RunSummary, error)
}

type AdminHandler struct {
	rejections RejectionClearer
	job        JobRunner
}

func NewAdminHandler(rejections RejectionClearer, job JobRunner) *AdminHandler {
	return &AdminHandler{rejections: rejections, job: job}
}

// ClearRejection handles DELETE /api/rejections?a=&b=.
func (h *AdminHandler) ClearRejection(c *gin.Context) {
	a, b := c.Query("a"), c.Query("b")
	if !isValidID(a) || !isValidID(b) {
		writeError(c, http.StatusBadRequest, "query parameters a and b must be shipment ids")
		return
	}
	if err := h.rejections.ClearRejection(c.Request.Context(), callerFrom(c), types.ID(a), types.ID(b)); err != nil {
		writeMatchError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) TriggerRun(c *gin.Context) {
	sum, err := h.job.RunOnce(c.Request.Context())
	if err != nil {
		writeMatchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"run_id":    sum.RunID,
		"shipments": sum.Shipments,
		"malformed": sum.Malformed,
		"buckets":   sum.Buckets,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
		"proposed":  sum.Proposed,
		"persisted": sum.Persisted,
		"duration":  sum.Duration.String(),
	})
}
