package flow

import (
	"siteflow/domain"
)

type LevelCreation struct {
	Level int         `json:"level" binding:"required,min=1"`
	Role  domain.Role `json:"role"  binding:"required"`

	Threshold *int64 `json:"threshold,omitempty" binding:"omitempty,min=0"`

	SLAHours           int         `json:"slaHours,omitempty" binding:"omitempty,min=1"`
	EscalateToRole     domain.Role `json:"escalateToRole,omitempty"`
	EscalateAfterHours int         `json:"escalateAfterHours,omitempty" binding:"omitempty,min=1"`
}

type DefinitionCreation struct {
	Name   string            `json:"name"   binding:"required"`
	Module domain.Module     `json:"module" binding:"required"`
	Entity domain.EntityType `json:"entity" binding:"required"`

	SLAHours int  `json:"slaHours" binding:"omitempty,min=1"`
	Active   bool `json:"active"`

	Levels []LevelCreation `json:"levels" binding:"dive"`
}

type DefinitionUpdating struct {
	Name     string `json:"name" binding:"required"`
	SLAHours int    `json:"slaHours" binding:"omitempty,min=1"`
	Active   bool   `json:"active"`

	Levels []LevelCreation `json:"levels" binding:"dive"`
}

type DefinitionQuery struct {
	Module domain.Module     `form:"module"`
	Entity domain.EntityType `form:"entity"`
	Name   string            `form:"name"`
}
