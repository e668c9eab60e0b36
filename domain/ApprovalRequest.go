package domain

import (
	"github.com/fundwit/go-commons/types"
)

// RequestStatus is the lifecycle state of one approval chain instance.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "Pending"
	RequestStatusApproved RequestStatus = "Approved"
	RequestStatusRejected RequestStatus = "Rejected"
)

func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// ApprovalAction is a recorded transition on an approval request.
type ApprovalAction string

const (
	ActionSubmitted ApprovalAction = "Submitted"
	ActionApproved  ApprovalAction = "Approved"
	ActionRejected  ApprovalAction = "Rejected"
	ActionEscalated ApprovalAction = "Escalated"
)

// ApprovalRequest is one in-flight or completed approval chain instance for a
// specific document submission. CurrentLevel never decreases; EscalatedLevel
// records the highest level already escalated so an SLA sweep stays idempotent.
type ApprovalRequest struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Module     Module     `json:"module"`
	EntityType EntityType `json:"entityType"`
	EntityID   types.ID   `json:"entityId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	EntityCode string     `json:"entityCode"`

	CurrentLevel int           `json:"currentLevel"`
	TotalLevels  int           `json:"totalLevels"`
	Status       RequestStatus `json:"status"`

	SubmittedBy     types.ID `json:"submittedBy" sql:"type:BIGINT UNSIGNED NOT NULL"`
	SubmittedByName string   `json:"submittedByName"`

	ApprovedBy     types.ID        `json:"approvedBy,omitempty" sql:"type:BIGINT UNSIGNED"`
	ApprovedByName string          `json:"approvedByName,omitempty"`
	ApprovedAt     types.Timestamp `json:"approvedAt,omitempty" sql:"type:DATETIME(6)"`

	Remarks string `json:"remarks,omitempty"`

	DueAt          types.Timestamp `json:"dueAt" sql:"type:DATETIME(6)"`
	EscalatedLevel int             `json:"escalatedLevel"`
	Overdue        bool            `json:"overdue" gorm:"-"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (r *ApprovalRequest) TableName() string {
	return "approval_requests"
}

// ApprovalRequestLevel is the snapshot of one resolved level, frozen onto the
// request at submit time. Definition edits never alter a pending chain.
type ApprovalRequestLevel struct {
	RequestID types.ID `json:"requestId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Level     int      `json:"level" gorm:"primary_key"`

	Role           Role   `json:"role"`
	Threshold      *int64 `json:"threshold,omitempty"`
	SLAHours       int    `json:"slaHours"`
	EscalateToRole Role   `json:"escalateToRole,omitempty"`
}

func (l *ApprovalRequestLevel) TableName() string {
	return "approval_request_levels"
}

// EffectiveRole is the role authorized to act at this level, honoring a
// recorded escalation.
func (l *ApprovalRequestLevel) EffectiveRole(escalatedLevel int) Role {
	if escalatedLevel >= l.Level && l.EscalateToRole != "" {
		return l.EscalateToRole
	}
	return l.Role
}

type ApprovalRequestDetail struct {
	ApprovalRequest

	Levels []ApprovalRequestLevel `json:"levels" gorm:"-"`
}

func (d *ApprovalRequestDetail) FindLevel(level int) (ApprovalRequestLevel, bool) {
	for _, l := range d.Levels {
		if l.Level == level {
			return l, true
		}
	}
	return ApprovalRequestLevel{}, false
}

// ApprovalHistory is one append-only audit trail entry of a request.
type ApprovalHistory struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RequestID types.ID `json:"requestId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Level     int      `json:"level"`

	ActorID   types.ID       `json:"actorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ActorName string         `json:"actorName"`
	Action    ApprovalAction `json:"action"`
	Remarks   string         `json:"remarks,omitempty"`

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6) NOT NULL"`
}

func (h *ApprovalHistory) TableName() string {
	return "approval_histories"
}
