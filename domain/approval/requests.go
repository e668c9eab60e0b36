package approval

import (
	"errors"
	"siteflow/bizerror"
	"siteflow/common"
	"siteflow/domain"
	"siteflow/domain/document"
	"siteflow/domain/flow"
	"siteflow/domain/sla"
	"siteflow/event"
	"siteflow/persistence"
	"siteflow/session"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	SubmitDocumentFunc        = SubmitDocument
	ApproveRequestFunc        = ApproveRequest
	RejectRequestFunc         = RejectRequest
	DetailApprovalRequestFunc = DetailApprovalRequest
	ListPendingForRoleFunc    = ListPendingForRole
	GetHistoryFunc            = GetHistory
	LoadRequestsFunc          = LoadRequests
)

// SubmitDocument routes a Draft document into its approval chain. The
// applicable levels are resolved once, here, and frozen onto the request;
// later definition edits never alter an in-flight chain. When no level
// applies the document is approved directly and no request is created.
func SubmitDocument(documentID types.ID, sec *session.Session) (*SubmitResult, error) {
	var result *SubmitResult
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		doc := domain.Document{}
		if err := tx.Where(&domain.Document{ID: documentID}).First(&doc).Error; err != nil {
			return err
		}
		if doc.Status != domain.DocStatusDraft {
			return bizerror.ErrAlreadySubmitted
		}

		resolved := []domain.ApprovalLevel{}
		var definitionID types.ID
		var definitionSLAHours int
		definition, err := flow.FindByModuleEntityFunc(doc.Module, doc.Entity, sec)
		if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
			return err
		}
		if definition != nil {
			definitionID = definition.ID
			definitionSLAHours = definition.SLAHours
			if resolved, err = flow.ResolveLevelsFunc(definition, doc.Amount); err != nil {
				return err
			}
		}

		now := types.CurrentTimestamp()

		// fast path: nothing to approve
		if len(resolved) == 0 {
			if err := document.TransitDocumentStatusFunc(tx, doc.ID, domain.DocStatusDraft, domain.DocStatusApproved); err != nil {
				return err
			}
			doc.Status = domain.DocStatusApproved
			result = &SubmitResult{AutoApproved: true, Document: &doc}
			ev, err = event.CreateEvent(event.SourceTypeDocument, doc.ID, doc.Code, event.EventCategoryTransited,
				[]event.UpdatedProperty{{PropertyName: "Status", PropertyDesc: "Status",
					OldValue: string(domain.DocStatusDraft), NewValue: string(domain.DocStatusApproved)}},
				&sec.Identity, tx)
			return err
		}

		slaConfig, err := sla.FindActiveSLAConfigFunc(doc.Module, doc.Entity, sec)
		if err != nil {
			return err
		}

		detail := &domain.ApprovalRequestDetail{
			ApprovalRequest: domain.ApprovalRequest{
				ID:         common.NextId(idWorker),
				WorkflowID: definitionID,
				Module:     doc.Module, EntityType: doc.Entity,
				EntityID: doc.ID, EntityCode: doc.Code,
				CurrentLevel: 1, TotalLevels: len(resolved),
				Status:      domain.RequestStatusPending,
				SubmittedBy: sec.Identity.ID, SubmittedByName: sec.Identity.Name,
				CreateTime: now,
			},
		}
		for _, l := range resolved {
			detail.Levels = append(detail.Levels, domain.ApprovalRequestLevel{
				RequestID: detail.ID, Level: l.Level,
				Role: l.Role, Threshold: l.Threshold,
				SLAHours:       sla.EffectiveSLAHours(l.SLAHours, definitionSLAHours, slaConfig),
				EscalateToRole: l.EscalateToRole,
			})
		}
		detail.DueAt = sla.ComputeDueAt(detail.Levels[0].SLAHours, now)

		if err := tx.Create(&detail.ApprovalRequest).Error; err != nil {
			return err
		}
		for i := range detail.Levels {
			if err := tx.Create(&detail.Levels[i]).Error; err != nil {
				return err
			}
		}
		if err := appendHistory(tx, detail.ID, 1, &sec.Identity, domain.ActionSubmitted, "", now); err != nil {
			return err
		}
		if err := document.TransitDocumentStatusFunc(tx, doc.ID, domain.DocStatusDraft, domain.DocStatusPending); err != nil {
			return err
		}
		doc.Status = domain.DocStatusPending
		result = &SubmitResult{Document: &doc, Request: detail}

		ev, err = event.CreateEvent(event.SourceTypeApprovalRequest, detail.ID, doc.Code, event.EventCategoryCreated,
			nil, &sec.Identity, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return result, nil
}

// ApproveRequest records an approve decision at the request's current level.
// The transition is guarded by a compare-and-set on (id, currentLevel,
// status); a caller holding a stale view fails with ErrConcurrentModification
// instead of double-advancing the chain.
func ApproveRequest(id types.ID, approving *Approving, sec *session.Session) (*domain.ApprovalRequestDetail, error) {
	var updated *domain.ApprovalRequestDetail
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		detail, err := loadRequestDetail(tx, id)
		if err != nil {
			return err
		}
		if detail.Status != domain.RequestStatusPending {
			return bizerror.ErrInvalidState
		}
		if approving.ExpectedLevel != detail.CurrentLevel {
			return bizerror.ErrConcurrentModification
		}
		if err := authorizeActor(detail, sec); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		lastLevel := detail.CurrentLevel == detail.TotalLevels
		if lastLevel {
			db := tx.Model(&domain.ApprovalRequest{}).
				Where("id = ? AND current_level = ? AND status = ?", id, detail.CurrentLevel, domain.RequestStatusPending).
				Update(map[string]interface{}{
					"status":           domain.RequestStatusApproved,
					"approved_by":      sec.Identity.ID,
					"approved_by_name": sec.Identity.Name,
					"approved_at":      now,
					"remarks":          approving.Remarks,
				})
			if err := db.Error; err != nil {
				return err
			}
			if db.RowsAffected != 1 {
				return bizerror.ErrConcurrentModification
			}
			if err := document.TransitDocumentStatusFunc(tx, detail.EntityID, domain.DocStatusPending, domain.DocStatusApproved); err != nil {
				return err
			}
		} else {
			next, found := detail.FindLevel(detail.CurrentLevel + 1)
			if !found {
				return errors.New("level " + strconv.Itoa(detail.CurrentLevel+1) + " is missing from request snapshot")
			}
			db := tx.Model(&domain.ApprovalRequest{}).
				Where("id = ? AND current_level = ? AND status = ?", id, detail.CurrentLevel, domain.RequestStatusPending).
				Update(map[string]interface{}{
					"current_level": detail.CurrentLevel + 1,
					"due_at":        sla.ComputeDueAt(next.SLAHours, now),
				})
			if err := db.Error; err != nil {
				return err
			}
			if db.RowsAffected != 1 {
				return bizerror.ErrConcurrentModification
			}
		}

		if err := appendHistory(tx, id, detail.CurrentLevel, &sec.Identity, domain.ActionApproved, approving.Remarks, now); err != nil {
			return err
		}
		transited := event.UpdatedProperty{PropertyName: "CurrentLevel", PropertyDesc: "CurrentLevel",
			OldValue: strconv.Itoa(detail.CurrentLevel), NewValue: strconv.Itoa(detail.CurrentLevel + 1)}
		if lastLevel {
			transited = event.UpdatedProperty{PropertyName: "Status", PropertyDesc: "Status",
				OldValue: string(domain.RequestStatusPending), NewValue: string(domain.RequestStatusApproved)}
		}
		ev, err = event.CreateEvent(event.SourceTypeApprovalRequest, id, detail.EntityCode, event.EventCategoryTransited,
			[]event.UpdatedProperty{transited},
			&sec.Identity, tx)
		if err != nil {
			return err
		}

		updated, err = loadRequestDetail(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return updated, nil
}

// RejectRequest terminates the chain at the current level. Remaining levels
// are never consulted; the document becomes editable again.
func RejectRequest(id types.ID, rejecting *Rejecting, sec *session.Session) (*domain.ApprovalRequestDetail, error) {
	var updated *domain.ApprovalRequestDetail
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		detail, err := loadRequestDetail(tx, id)
		if err != nil {
			return err
		}
		if detail.Status != domain.RequestStatusPending {
			return bizerror.ErrInvalidState
		}
		if rejecting.ExpectedLevel != detail.CurrentLevel {
			return bizerror.ErrConcurrentModification
		}
		if err := authorizeActor(detail, sec); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		db := tx.Model(&domain.ApprovalRequest{}).
			Where("id = ? AND current_level = ? AND status = ?", id, detail.CurrentLevel, domain.RequestStatusPending).
			Update(map[string]interface{}{
				"status":           domain.RequestStatusRejected,
				"approved_by":      sec.Identity.ID,
				"approved_by_name": sec.Identity.Name,
				"approved_at":      now,
				"remarks":          rejecting.Remarks,
			})
		if err := db.Error; err != nil {
			return err
		}
		if db.RowsAffected != 1 {
			return bizerror.ErrConcurrentModification
		}
		if err := document.TransitDocumentStatusFunc(tx, detail.EntityID, domain.DocStatusPending, domain.DocStatusRejected); err != nil {
			return err
		}

		if err := appendHistory(tx, id, detail.CurrentLevel, &sec.Identity, domain.ActionRejected, rejecting.Remarks, now); err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourceTypeApprovalRequest, id, detail.EntityCode, event.EventCategoryTransited,
			[]event.UpdatedProperty{{PropertyName: "Status", PropertyDesc: "Status",
				OldValue: string(domain.RequestStatusPending), NewValue: string(domain.RequestStatusRejected)}},
			&sec.Identity, tx)
		if err != nil {
			return err
		}

		updated, err = loadRequestDetail(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return updated, nil
}

func DetailApprovalRequest(id types.ID, sec *session.Session) (*domain.ApprovalRequestDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	detail, err := loadRequestDetail(db, id)
	if err != nil {
		return nil, err
	}
	detail.Overdue = sla.IsOverdue(&detail.ApprovalRequest, time.Now())
	return detail, nil
}

// ListPendingForRole returns the inbox of a role: pending requests whose
// current level requires that role, honoring recorded escalations.
func ListPendingForRole(query *PendingQuery, sec *session.Session) ([]domain.ApprovalRequestDetail, error) {
	var requests []domain.ApprovalRequest
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.ApprovalRequest{Status: domain.RequestStatusPending}).
		Order("due_at ASC").Find(&requests).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	inbox := []domain.ApprovalRequestDetail{}
	for _, r := range requests {
		detail := domain.ApprovalRequestDetail{ApprovalRequest: r}
		if err := db.Where(domain.ApprovalRequestLevel{RequestID: r.ID}).
			Order("level ASC").Find(&detail.Levels).Error; err != nil {
			return nil, err
		}
		level, found := detail.FindLevel(r.CurrentLevel)
		if !found || level.EffectiveRole(r.EscalatedLevel) != query.Role {
			continue
		}
		detail.Overdue = sla.IsOverdue(&detail.ApprovalRequest, now)
		inbox = append(inbox, detail)
	}
	return inbox, nil
}

// GetHistory returns the append-only audit trail of a request, oldest first.
func GetHistory(requestID types.ID, sec *session.Session) ([]domain.ApprovalHistory, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.ApprovalRequest{ID: requestID}).First(&domain.ApprovalRequest{}).Error; err != nil {
		return nil, err
	}
	var histories []domain.ApprovalHistory
	if err := db.Where(domain.ApprovalHistory{RequestID: requestID}).
		Order("id ASC").Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

// LoadRequests pages through all requests, oldest id first, for index
// synchronisation.
func LoadRequests(page, size int, sec *session.Session) ([]domain.ApprovalRequestDetail, error) {
	var requests []domain.ApprovalRequest
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}
	if err := db.Order("id ASC").Offset(offset).Limit(size).Find(&requests).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	details := make([]domain.ApprovalRequestDetail, 0, len(requests))
	for _, r := range requests {
		detail := domain.ApprovalRequestDetail{ApprovalRequest: r}
		if err := db.Where(domain.ApprovalRequestLevel{RequestID: r.ID}).
			Order("level ASC").Find(&detail.Levels).Error; err != nil {
			return nil, err
		}
		detail.Overdue = sla.IsOverdue(&detail.ApprovalRequest, now)
		details = append(details, detail)
	}
	return details, nil
}

func authorizeActor(detail *domain.ApprovalRequestDetail, sec *session.Session) error {
	level, found := detail.FindLevel(detail.CurrentLevel)
	if !found {
		return errors.New("level " + strconv.Itoa(detail.CurrentLevel) + " is missing from request snapshot")
	}
	if !sec.HasApprovalRole(level.EffectiveRole(detail.EscalatedLevel)) {
		return bizerror.ErrNotAuthorized
	}
	return nil
}

func loadRequestDetail(db *gorm.DB, id types.ID) (*domain.ApprovalRequestDetail, error) {
	detail := domain.ApprovalRequestDetail{}
	if err := db.Where(&domain.ApprovalRequest{ID: id}).First(&detail.ApprovalRequest).Error; err != nil {
		return nil, err
	}
	if err := db.Where(domain.ApprovalRequestLevel{RequestID: id}).
		Order("level ASC").Find(&detail.Levels).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func appendHistory(tx *gorm.DB, requestID types.ID, level int, identity *session.Identity,
	action domain.ApprovalAction, remarks string, at types.Timestamp) error {

	return tx.Create(&domain.ApprovalHistory{
		ID:        common.NextId(idWorker),
		RequestID: requestID,
		Level:     level,
		ActorID:   identity.ID, ActorName: identity.Name,
		Action: action, Remarks: remarks,
		Timestamp: at,
	}).Error
}
