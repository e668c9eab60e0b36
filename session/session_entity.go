package session

import (
	"context"
	"siteflow/domain"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

const SystemAdminPermission = "system:admin"

type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

func (c Permissions) HasAdminRole() bool {
	return c.HasRole(SystemAdminPermission)
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

// Session carries the acting user's identity and approval roles, resolved by
// the identity provider in front of this service.
type Session struct {
	Token         string        `json:"token"`
	Identity      Identity      `json:"identity"`
	Perms         Permissions   `json:"perms"`
	ApprovalRoles []domain.Role `json:"approvalRoles"`

	SigningTime time.Time `json:"-"`

	Context context.Context `json:"-"`
}

func (s *Session) HasApprovalRole(role domain.Role) bool {
	for _, r := range s.ApprovalRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Session) Clone() Session {
	c := *s
	c.Perms = append(Permissions{}, s.Perms...)
	c.ApprovalRoles = append([]domain.Role{}, s.ApprovalRoles...)
	return c
}
