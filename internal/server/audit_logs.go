package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
)

// auditLogQuery accepts target_* or the older resource_* names, and
// start_at/end_at or from/to.
type auditLogQuery struct {
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"`
	Action       string `form:"action"`
	ActorType    string `form:"actor_type"`
	TargetType   string `form:"target_type"`
	TargetID     string `form:"target_id"`
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
	StartAt      string `form:"start_at"`
	EndAt        string `form:"end_at"`
	From         string `form:"from"`
	To           string `form:"to"`
}

func (q auditLogQuery) window() (start, end *time.Time, err error) {
	if start, err = parseTimeBound(coalesce(q.StartAt, q.From), rangeStart); err != nil {
		return nil, nil, newValidationError("start_at", "invalid_start_at", "invalid start_at")
	}
	if end, err = parseTimeBound(coalesce(q.EndAt, q.To), rangeEnd); err != nil {
		return nil, nil, newValidationError("end_at", "invalid_end_at", "invalid end_at")
	}
	return start, end, nil
}

// ListAuditLogs pages through the organization's price rule audit trail, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	var q auditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, end, err := q.window()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: strings.TrimSpace(q.PageToken), PageSize: q.PageSize},
		Action:     strings.TrimSpace(q.Action),
		ActorType:  strings.TrimSpace(q.ActorType),
		TargetType: coalesce(q.TargetType, q.ResourceType),
		TargetID:   coalesce(q.TargetID, q.ResourceID),
		StartAt:    start,
		EndAt:      end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
