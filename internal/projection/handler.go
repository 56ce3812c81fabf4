package projection

import (
	"errors"
	"net/http"

	httperr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/analytics", s.HandleQueryAnalytics)
}

// HandleQueryAnalytics handles GET /v1/analytics
// Query parameters: station, interval, start, end
func (s *Service) HandleQueryAnalytics(c *gin.Context) {
	var req AnalyticsQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.QueryAnalytics(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidQueryError,
				Message:   "Invalid analytics query",
				Details:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query analytics",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
