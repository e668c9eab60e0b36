package sla

import (
	"siteflow/domain"
	"time"

	"github.com/fundwit/go-commons/types"
)

// DefaultSLAHours applies when neither the level, the definition nor an
// SLAConfig names a turnaround target.
const DefaultSLAHours = 24

// EffectiveSLAHours picks the turnaround target for one level: the level's
// own override wins, then the definition's default, then the module/entity
// SLAConfig, then the system default.
func EffectiveSLAHours(levelSLAHours, definitionSLAHours int, config *domain.SLAConfig) int {
	if levelSLAHours > 0 {
		return levelSLAHours
	}
	if definitionSLAHours > 0 {
		return definitionSLAHours
	}
	if config != nil && config.Active && config.SLAHours > 0 {
		return config.SLAHours
	}
	return DefaultSLAHours
}

// ComputeDueAt stamps the deadline for a level entered at enteredAt.
func ComputeDueAt(slaHours int, enteredAt types.Timestamp) types.Timestamp {
	if slaHours <= 0 {
		slaHours = DefaultSLAHours
	}
	return types.Timestamp(enteredAt.Time().Add(time.Duration(slaHours) * time.Hour))
}

// IsOverdue reports whether a pending request has passed its deadline.
// Terminal requests are never overdue.
func IsOverdue(request *domain.ApprovalRequest, now time.Time) bool {
	if request.Status != domain.RequestStatusPending {
		return false
	}
	if request.DueAt.IsZero() {
		return false
	}
	return now.After(request.DueAt.Time())
}

// EscalationTarget returns the role approval authority moves to when the
// level's deadline is missed, if the level has one.
func EscalationTarget(level domain.ApprovalRequestLevel) (domain.Role, bool) {
	if level.EscalateToRole == "" {
		return "", false
	}
	return level.EscalateToRole, true
}
