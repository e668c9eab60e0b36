package sla

import (
	"errors"
	"siteflow/bizerror"
	"siteflow/common"
	"siteflow/domain"
	"siteflow/persistence"
	"siteflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateSLAConfigFunc     = CreateSLAConfig
	QuerySLAConfigsFunc     = QuerySLAConfigs
	FindActiveSLAConfigFunc = FindActiveSLAConfig
)

type SLAConfigCreation struct {
	Module domain.Module     `json:"module" binding:"required"`
	Entity domain.EntityType `json:"entity" binding:"required"`

	SLAHours     int         `json:"slaHours" binding:"required,min=1"`
	EscalateRole domain.Role `json:"escalateRole,omitempty"`
	NotifyRoles  string      `json:"notifyRoles,omitempty"`
	Active       bool        `json:"active"`
}

type SLAConfigQuery struct {
	Module domain.Module     `form:"module"`
	Entity domain.EntityType `form:"entity"`
}

func CreateSLAConfig(c *SLAConfigCreation, sec *session.Session) (*domain.SLAConfig, error) {
	if !sec.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}
	if !c.Module.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unknown module '" + string(c.Module) + "'")}
	}
	if !c.Entity.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unknown entity type '" + string(c.Entity) + "'")}
	}
	if c.EscalateRole != "" && !c.EscalateRole.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unknown role '" + string(c.EscalateRole) + "'")}
	}

	record := &domain.SLAConfig{
		ID:     common.NextId(idWorker),
		Module: c.Module, Entity: c.Entity,
		SLAHours: c.SLAHours, EscalateRole: c.EscalateRole, NotifyRoles: c.NotifyRoles,
		Active:     c.Active,
		CreateTime: types.CurrentTimestamp(),
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if record.Active {
			if err := tx.Model(&domain.SLAConfig{}).
				Where("module = ? AND entity = ? AND active = ?", c.Module, c.Entity, true).
				Update("active", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func QuerySLAConfigs(query *SLAConfigQuery, sec *session.Session) (*[]domain.SLAConfig, error) {
	var configs []domain.SLAConfig
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Where(domain.SLAConfig{Module: query.Module, Entity: query.Entity})
	if err := q.Order("id ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return &configs, nil
}

// FindActiveSLAConfig returns the active override for a module/entity pair,
// or nil when the pair has none.
func FindActiveSLAConfig(module domain.Module, entity domain.EntityType, sec *session.Session) (*domain.SLAConfig, error) {
	record := domain.SLAConfig{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Where(&domain.SLAConfig{Module: module, Entity: entity, Active: true}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
