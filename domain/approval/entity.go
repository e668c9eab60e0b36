package approval

import (
	"siteflow/domain"
)

// Approving carries one approve action. ExpectedLevel is the level the actor
// believes is awaiting action; a stale value loses the optimistic check.
type Approving struct {
	ExpectedLevel int    `json:"expectedLevel" binding:"required,min=1"`
	Remarks       string `json:"remarks,omitempty"`
}

type Rejecting struct {
	ExpectedLevel int    `json:"expectedLevel" binding:"required,min=1"`
	Remarks       string `json:"remarks" binding:"required"`
}

type PendingQuery struct {
	Role domain.Role `form:"role" validate:"required"`
}

// SubmitResult reports the outcome of a document submission: either a created
// approval request, or the auto-approval fast path when no level applies.
type SubmitResult struct {
	AutoApproved bool                          `json:"autoApproved"`
	Document     *domain.Document              `json:"document"`
	Request      *domain.ApprovalRequestDetail `json:"request,omitempty"`
}
