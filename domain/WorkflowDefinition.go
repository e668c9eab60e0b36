package domain

import (
	"github.com/fundwit/go-commons/types"
)

// WorkflowDefinition names the ordered approval levels governing one
// document class of one module.
type WorkflowDefinition struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`

	Module Module     `json:"module"`
	Entity EntityType `json:"entity"`

	SLAHours int  `json:"slaHours"`
	Active   bool `json:"active"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (d *WorkflowDefinition) TableName() string {
	return "workflow_definitions"
}

// ApprovalLevel is one rung of a WorkflowDefinition. Level numbers are dense
// from 1 and strictly increasing; thresholds, when present, are non-decreasing
// with level number.
type ApprovalLevel struct {
	WorkflowID types.ID `json:"workflowId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Level      int      `json:"level" gorm:"primary_key"`

	Role      Role   `json:"role"`
	Threshold *int64 `json:"threshold,omitempty"`

	SLAHours           int  `json:"slaHours,omitempty"`
	EscalateToRole     Role `json:"escalateToRole,omitempty"`
	EscalateAfterHours int  `json:"escalateAfterHours,omitempty"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (l *ApprovalLevel) TableName() string {
	return "approval_levels"
}

type WorkflowDefinitionDetail struct {
	WorkflowDefinition

	Levels []ApprovalLevel `json:"levels" gorm:"-"`
}

func (d *WorkflowDefinitionDetail) FindLevel(level int) (ApprovalLevel, bool) {
	for _, l := range d.Levels {
		if l.Level == level {
			return l, true
		}
	}
	return ApprovalLevel{}, false
}

// SLAConfig optionally overrides the default SLA behavior of a module/entity
// pair when the applicable workflow definition carries no slaHours of its own.
type SLAConfig struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Module Module     `json:"module"`
	Entity EntityType `json:"entity"`

	SLAHours     int    `json:"slaHours"`
	EscalateRole Role   `json:"escalateRole,omitempty"`
	NotifyRoles  string `json:"notifyRoles,omitempty"`
	Active       bool   `json:"active"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (c *SLAConfig) TableName() string {
	return "sla_configs"
}
