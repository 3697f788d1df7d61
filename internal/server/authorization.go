package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pricerules/internal/auditcontext"
	"github.com/smallbiznis/pricerules/internal/orgcontext"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

type Actor struct {
	Type  ActorType
	OrgID snowflake.ID
	ID    string
}

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if actor.OrgID == 0 {
		return ErrOrgRequired
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.subject(), actor.OrgID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}

func actorFromContext(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}

	ctx := c.Request.Context()
	actorType, actorID := auditcontext.ActorFromContext(ctx)
	orgID, _ := orgcontext.OrgIDFromContext(ctx)

	switch ActorType(actorType) {
	case ActorUser:
		if strings.TrimSpace(actorID) == "" {
			return Actor{}, false
		}
		return Actor{Type: ActorUser, OrgID: orgID, ID: actorID}, true
	case ActorSystem:
		return Actor{Type: ActorSystem, OrgID: orgID, ID: string(ActorSystem)}, true
	default:
		return Actor{}, false
	}
}

func (a Actor) subject() string {
	switch a.Type {
	case ActorUser:
		return fmt.Sprintf("user:%s", a.ID)
	case ActorSystem:
		return "system"
	default:
		return ""
	}
}
