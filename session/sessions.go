package session

import (
	"context"
	"siteflow/bizerror"
	"siteflow/domain"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const KeySecCtx = "SecCtx"

// Identity assertion headers, stamped by the gateway in front of this service.
const (
	HeaderIdentityID    = "X-Identity-Id"
	HeaderIdentityName  = "X-Identity-Name"
	HeaderApprovalRoles = "X-Approval-Roles"
	HeaderPerms         = "X-Perms"
)

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func InjectSessionIntoGinContext(ctx *gin.Context, s *Session) {
	if s != nil {
		ctx.Set(KeySecCtx, s)
	}
}

// TrustedHeaderFilter builds the request session from gateway identity
// assertion headers. Requests without an identity are refused.
func TrustedHeaderFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rawID := ctx.GetHeader(HeaderIdentityID)
		if rawID == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		id, err := types.ParseID(rawID)
		if err != nil {
			panic(bizerror.ErrUnauthenticated)
		}

		s := Session{
			Identity: Identity{ID: id, Name: ctx.GetHeader(HeaderIdentityName)},
			Perms:    splitHeaderValues(ctx.GetHeader(HeaderPerms)),
			Context:  ctx.Request.Context(),
		}
		for _, r := range splitHeaderValues(ctx.GetHeader(HeaderApprovalRoles)) {
			s.ApprovalRoles = append(s.ApprovalRoles, domain.Role(r))
		}

		InjectSessionIntoGinContext(ctx, &s)
		ctx.Next()
	}
}

func splitHeaderValues(raw string) []string {
	values := []string{}
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// NewRobotSession builds an internal session for system-triggered work
// (escalation sweeps, index synchronisation).
func NewRobotSession(name string, perms ...string) *Session {
	return &Session{
		Identity: Identity{ID: 1, Name: name},
		Perms:    perms,
		Context:  context.Background(),
	}
}
