package flow

import (
	"errors"
	"siteflow/bizerror"
	"siteflow/common"
	"siteflow/domain"
	"siteflow/persistence"
	"siteflow/session"
	"sort"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	// read-mostly definition cache; every write path below invalidates
	// synchronously before returning success
	definitionCache = gocache.New(10*time.Minute, time.Minute)

	CreateWorkflowDefinitionFunc = CreateWorkflowDefinition
	UpdateWorkflowDefinitionFunc = UpdateWorkflowDefinition
	DeleteWorkflowDefinitionFunc = DeleteWorkflowDefinition
	DetailWorkflowDefinitionFunc = DetailWorkflowDefinition
	QueryWorkflowDefinitionsFunc = QueryWorkflowDefinitions
	FindByModuleEntityFunc       = FindByModuleEntity
)

func cacheKeyOfID(id types.ID) string {
	return "definition/" + id.String()
}
func cacheKeyOfModuleEntity(module domain.Module, entity domain.EntityType) string {
	return "active/" + string(module) + "/" + string(entity)
}

func CreateWorkflowDefinition(c *DefinitionCreation, sec *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	if !sec.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}
	if err := validateDefinition(c.Module, c.Entity, c.Levels); err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	detail := &domain.WorkflowDefinitionDetail{
		WorkflowDefinition: domain.WorkflowDefinition{
			ID:         common.NextId(idWorker),
			Name:       c.Name,
			Module:     c.Module,
			Entity:     c.Entity,
			SLAHours:   c.SLAHours,
			Active:     c.Active,
			CreateTime: now,
		},
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if detail.Active {
			if err := deactivatePriorActive(tx, c.Module, c.Entity, detail.ID); err != nil {
				return err
			}
		}
		if err := tx.Create(detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		for _, l := range c.Levels {
			levelEntity := domain.ApprovalLevel{
				WorkflowID: detail.ID, Level: l.Level, Role: l.Role, Threshold: l.Threshold,
				SLAHours: l.SLAHours, EscalateToRole: l.EscalateToRole, EscalateAfterHours: l.EscalateAfterHours,
				CreateTime: now,
			}
			if err := tx.Create(levelEntity).Error; err != nil {
				return err
			}
			detail.Levels = append(detail.Levels, levelEntity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	definitionCache.Delete(cacheKeyOfModuleEntity(c.Module, c.Entity))
	return detail, nil
}

func UpdateWorkflowDefinition(id types.ID, u *DefinitionUpdating, sec *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	if !sec.Perms.HasAdminRole() {
		return nil, bizerror.ErrForbidden
	}

	var detail *domain.WorkflowDefinitionDetail
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		record := domain.WorkflowDefinition{}
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&record).Error; err != nil {
			return err
		}
		if err := validateDefinition(record.Module, record.Entity, u.Levels); err != nil {
			return err
		}

		if u.Active {
			if err := deactivatePriorActive(tx, record.Module, record.Entity, record.ID); err != nil {
				return err
			}
		}

		// gorm struct updates skip zero values, Active must be set explicitly
		if err := tx.Model(&domain.WorkflowDefinition{}).Where(&domain.WorkflowDefinition{ID: id}).
			Update(map[string]interface{}{"name": u.Name, "sla_hours": u.SLAHours, "active": u.Active}).Error; err != nil {
			return err
		}

		// level rows are replaced wholesale; pending requests carry their own
		// snapshot and are unaffected
		if err := tx.Delete(domain.ApprovalLevel{}, "workflow_id = ?", id).Error; err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		detail = &domain.WorkflowDefinitionDetail{}
		for _, l := range u.Levels {
			levelEntity := domain.ApprovalLevel{
				WorkflowID: id, Level: l.Level, Role: l.Role, Threshold: l.Threshold,
				SLAHours: l.SLAHours, EscalateToRole: l.EscalateToRole, EscalateAfterHours: l.EscalateAfterHours,
				CreateTime: now,
			}
			if err := tx.Create(levelEntity).Error; err != nil {
				return err
			}
			detail.Levels = append(detail.Levels, levelEntity)
		}

		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	definitionCache.Delete(cacheKeyOfID(id))
	definitionCache.Delete(cacheKeyOfModuleEntity(detail.Module, detail.Entity))
	return detail, nil
}

func DeleteWorkflowDefinition(id types.ID, sec *session.Session) error {
	if !sec.Perms.HasAdminRole() {
		return bizerror.ErrForbidden
	}

	record := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.WorkflowDefinition{ID: id}).First(&record).Error; err != nil {
			return err
		}
		if err := isDefinitionReferenced(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(domain.WorkflowDefinition{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(domain.ApprovalLevel{}, "workflow_id = ?", id).Error
	})
	if err != nil {
		return err
	}

	definitionCache.Delete(cacheKeyOfID(id))
	definitionCache.Delete(cacheKeyOfModuleEntity(record.Module, record.Entity))
	return nil
}

func DetailWorkflowDefinition(id types.ID, sec *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	if cached, found := definitionCache.Get(cacheKeyOfID(id)); found {
		detail := cached.(domain.WorkflowDefinitionDetail)
		return &detail, nil
	}

	detail := domain.WorkflowDefinitionDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
		return nil, err
	}
	if err := db.Where(domain.ApprovalLevel{WorkflowID: id}).Order("level ASC").Find(&detail.Levels).Error; err != nil {
		return nil, err
	}

	definitionCache.Set(cacheKeyOfID(id), detail, gocache.DefaultExpiration)
	return &detail, nil
}

func QueryWorkflowDefinitions(query *DefinitionQuery, sec *session.Session) (*[]domain.WorkflowDefinition, error) {
	var definitions []domain.WorkflowDefinition
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	q := db.Where(domain.WorkflowDefinition{Module: query.Module, Entity: query.Entity})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	if err := q.Order("id ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return &definitions, nil
}

// FindByModuleEntity returns the single active definition governing a
// module/entity pair.
func FindByModuleEntity(module domain.Module, entity domain.EntityType, sec *session.Session) (*domain.WorkflowDefinitionDetail, error) {
	key := cacheKeyOfModuleEntity(module, entity)
	if cached, found := definitionCache.Get(key); found {
		detail := cached.(domain.WorkflowDefinitionDetail)
		return &detail, nil
	}

	record := domain.WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Where(&domain.WorkflowDefinition{Module: module, Entity: entity, Active: true}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := domain.WorkflowDefinitionDetail{WorkflowDefinition: record}
	if err := db.Where(domain.ApprovalLevel{WorkflowID: record.ID}).Order("level ASC").Find(&detail.Levels).Error; err != nil {
		return nil, err
	}

	definitionCache.Set(key, detail, gocache.DefaultExpiration)
	return &detail, nil
}

// at most one active definition per (module, entity)
func deactivatePriorActive(tx *gorm.DB, module domain.Module, entity domain.EntityType, exceptID types.ID) error {
	err := tx.Model(&domain.WorkflowDefinition{}).
		Where("module = ? AND entity = ? AND active = ? AND id != ?", module, entity, true, exceptID).
		Update("active", false).Error
	if err != nil {
		return err
	}
	definitionCache.Delete(cacheKeyOfModuleEntity(module, entity))
	return nil
}

func isDefinitionReferenced(tx *gorm.DB, id types.ID) error {
	var request domain.ApprovalRequest
	err := tx.Where(&domain.ApprovalRequest{WorkflowID: id}).First(&request).Error
	if err == nil {
		return bizerror.ErrWorkflowIsReferenced
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func validateDefinition(module domain.Module, entity domain.EntityType, levels []LevelCreation) error {
	if !module.IsValid() {
		return &bizerror.ErrInvalidWorkflow{Rule: "unknown module '" + string(module) + "'"}
	}
	if !entity.IsValid() {
		return &bizerror.ErrInvalidWorkflow{Rule: "unknown entity type '" + string(entity) + "'"}
	}

	sorted := append([]LevelCreation{}, levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	lastThreshold := int64(-1)
	for idx, l := range sorted {
		if l.Level != idx+1 {
			return &bizerror.ErrInvalidWorkflow{Rule: "levels must be numbered contiguously from 1"}
		}
		if l.Role == "" || !l.Role.IsValid() {
			return &bizerror.ErrInvalidWorkflow{Rule: "unknown role '" + string(l.Role) + "' at level " + strconv.Itoa(l.Level)}
		}
		if l.EscalateToRole != "" && !l.EscalateToRole.IsValid() {
			return &bizerror.ErrInvalidWorkflow{Rule: "unknown escalation role '" + string(l.EscalateToRole) + "' at level " + strconv.Itoa(l.Level)}
		}
		if l.Threshold != nil {
			if *l.Threshold < 0 {
				return &bizerror.ErrInvalidWorkflow{Rule: "negative threshold at level " + strconv.Itoa(l.Level)}
			}
			if *l.Threshold < lastThreshold {
				return &bizerror.ErrInvalidWorkflow{Rule: "threshold at level " + strconv.Itoa(l.Level) + " is lower than a preceding level"}
			}
			lastThreshold = *l.Threshold
		}
	}
	return nil
}
