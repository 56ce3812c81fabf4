package rollup

import (
	"context"
	"errors"
	"net/http"

	httperr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the manual trigger on the given router.
func (t *Task) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/analytics/run", t.HandleRun)
}

// HandleRun handles POST /v1/analytics/run
// The run is synchronous; the response carries the run summary.
// A client disconnect does not abort the run once the window has been purged.
func (t *Task) HandleRun(c *gin.Context) {
	summary, err := t.Run(context.WithoutCancel(c.Request.Context()))
	if err == nil {
		c.JSON(http.StatusOK, summary)
		return
	}

	var (
		cfgErr    *httperr.ConfigurationError
		sourceErr *httperr.SourceQueryError
		storeErr  *httperr.StoreError
	)
	switch {
	case errors.Is(err, ErrRunInProgress):
		c.JSON(http.StatusConflict, httperr.ErrorResponse{
			ErrorType: httperr.HttpRunInProgressError,
			Message:   "An analytics run is already in progress",
			Details:   err.Error(),
		})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpConfigurationError,
			Message:   "Analytics configuration is invalid",
			Details:   err.Error(),
		})
	case errors.As(err, &sourceErr):
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpSourceQueryError,
			Message:   "Source query failed",
			Details:   err.Error(),
		})
	case errors.As(err, &storeErr):
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStoreError,
			Message:   "Analytics store failed",
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Analytics run failed",
			Details:   err.Error(),
		})
	}
}
