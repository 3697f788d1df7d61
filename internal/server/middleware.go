package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pricerules/internal/auditcontext"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
)

const (
	HeaderOrg   = "X-Org-Id"
	HeaderActor = "X-Actor"
)

// OrgContext resolves the tenant from the X-Org-Id header and stores it on
// the request context. Requests without a valid organization are rejected.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgcontext.ParseOrgID(c.GetHeader(HeaderOrg))
		if !ok {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorContext records the caller named by X-Actor ("user:<id>" or "system")
// for audit entries and authorization.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c.GetHeader(HeaderActor))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := auditcontext.WithActor(c.Request.Context(), string(actor.Type), actor.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseActor(raw string) (Actor, bool) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return Actor{}, false
	case strings.EqualFold(value, string(ActorSystem)):
		return Actor{Type: ActorSystem, ID: string(ActorSystem)}, true
	case strings.HasPrefix(value, string(ActorUser)+":"):
		id := strings.TrimSpace(strings.TrimPrefix(value, string(ActorUser)+":"))
		if parsed, err := snowflake.ParseString(id); err != nil || parsed == 0 {
			return Actor{}, false
		}
		return Actor{Type: ActorUser, ID: id}, true
	default:
		return Actor{}, false
	}
}
