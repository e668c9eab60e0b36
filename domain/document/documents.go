package document

import (
	"errors"
	"siteflow/bizerror"
	"siteflow/common"
	"siteflow/domain"
	"siteflow/event"
	"siteflow/persistence"
	"siteflow/session"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateDocumentFunc        = CreateDocument
	QueryDocumentsFunc        = QueryDocuments
	DetailDocumentFunc        = DetailDocument
	UpdateDocumentFunc        = UpdateDocument
	CancelDocumentFunc        = CancelDocument
	TransitDocumentStatusFunc = TransitDocumentStatus
)

type DocumentCreation struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`

	Module domain.Module     `json:"module" binding:"required"`
	Entity domain.EntityType `json:"entity" binding:"required"`

	Amount int64 `json:"amount" binding:"min=0"`
}

type DocumentUpdating struct {
	Name   string `json:"name" binding:"required"`
	Amount int64  `json:"amount" binding:"min=0"`
}

type DocumentQuery struct {
	Module domain.Module     `form:"module"`
	Entity domain.EntityType `form:"entity"`
	Status domain.DocStatus  `form:"status"`
}

func CreateDocument(c *DocumentCreation, sec *session.Session) (*domain.Document, error) {
	if !c.Module.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unknown module '" + string(c.Module) + "'")}
	}
	if !c.Entity.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unknown entity type '" + string(c.Entity) + "'")}
	}

	record := &domain.Document{
		ID:   common.NextId(idWorker),
		Code: c.Code, Name: c.Name,
		Module: c.Module, Entity: c.Entity,
		Amount: c.Amount, Status: domain.DocStatusDraft,
		CreatorID: sec.Identity.ID, CreatorName: sec.Identity.Name,
		CreateTime: types.CurrentTimestamp(),
	}

	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(event.SourceTypeDocument, record.ID, record.Code,
			event.EventCategoryCreated, nil, &sec.Identity, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return record, nil
}

func QueryDocuments(query *DocumentQuery, sec *session.Session) (*[]domain.Document, error) {
	var documents []domain.Document
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Where(domain.Document{Module: query.Module, Entity: query.Entity, Status: query.Status})
	if err := q.Order("id ASC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return &documents, nil
}

func DetailDocument(id types.ID, sec *session.Session) (*domain.Document, error) {
	record := domain.Document{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.Document{ID: id}).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateDocument mutates editable fields, honoring the lock policy: Approved
// and Cancelled documents refuse edits.
func UpdateDocument(id types.ID, u *DocumentUpdating, sec *session.Session) (*domain.Document, error) {
	var updated domain.Document
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		origin := domain.Document{}
		if err := tx.Where(&domain.Document{ID: id}).First(&origin).Error; err != nil {
			return err
		}
		if !domain.CanEdit(origin.Status) {
			return bizerror.ErrDocumentLocked
		}

		if err := tx.Model(&domain.Document{}).Where(&domain.Document{ID: id}).
			Update(map[string]interface{}{"name": u.Name, "amount": u.Amount}).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeDocument, origin.ID, origin.Code,
			event.EventCategoryPropertyUpdated,
			[]event.UpdatedProperty{
				{PropertyName: "Name", PropertyDesc: "Name", OldValue: origin.Name, NewValue: u.Name},
				{PropertyName: "Amount", PropertyDesc: "Amount",
					OldValue: strconv.FormatInt(origin.Amount, 10), NewValue: strconv.FormatInt(u.Amount, 10)},
			},
			&sec.Identity, tx)
		if err != nil {
			return err
		}

		return tx.Where(&domain.Document{ID: id}).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return &updated, nil
}

// CancelDocument locks a document out of further routing. Pending documents
// must leave the chain through reject first; Approved documents stay locked.
func CancelDocument(id types.ID, sec *session.Session) (*domain.Document, error) {
	var cancelled domain.Document
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		origin := domain.Document{}
		if err := tx.Where(&domain.Document{ID: id}).First(&origin).Error; err != nil {
			return err
		}
		if origin.Status != domain.DocStatusDraft && origin.Status != domain.DocStatusRejected {
			return bizerror.ErrInvalidState
		}
		if err := TransitDocumentStatusFunc(tx, id, origin.Status, domain.DocStatusCancelled); err != nil {
			return err
		}
		return tx.Where(&domain.Document{ID: id}).First(&cancelled).Error
	})
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

// TransitDocumentStatus moves a document between lifecycle states with a
// compare-and-set on the expected current status.
func TransitDocumentStatus(tx *gorm.DB, id types.ID, from, to domain.DocStatus) error {
	db := tx.Model(&domain.Document{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if err := db.Error; err != nil {
		return err
	}
	if db.RowsAffected != 1 {
		return bizerror.ErrInvalidState
	}
	return nil
}
