package approval

import (
	"siteflow/bizerror"
	"siteflow/domain"
	"siteflow/domain/sla"
	"siteflow/event"
	"siteflow/persistence"
	"siteflow/session"
	"strconv"
	"sync"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	escalationRobot = session.NewRobotSession("sla-robot", session.SystemAdminPermission)

	lock    sync.Mutex
	running bool

	EscalateRequestFunc       = EscalateRequest
	EscalationSweepFunc       = EscalationSweep
	ScheduleEscalationRunFunc = ScheduleEscalationRun
)

// EscalateRequest moves approval authority at the request's current level to
// the level's escalation role. CurrentLevel and status do not change.
// Escalating an already-escalated level, or a level without an escalation
// target, is a no-op.
func EscalateRequest(id types.ID, sec *session.Session) (*domain.ApprovalRequestDetail, error) {
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
		if detail.EscalatedLevel >= detail.CurrentLevel {
			updated = detail
			return nil
		}
		level, found := detail.FindLevel(detail.CurrentLevel)
		if !found {
			updated = detail
			return nil
		}
		target, found := sla.EscalationTarget(level)
		if !found {
			updated = detail
			return nil
		}

		db := tx.Model(&domain.ApprovalRequest{}).
			Where("id = ? AND current_level = ? AND escalated_level = ? AND status = ?",
				id, detail.CurrentLevel, detail.EscalatedLevel, domain.RequestStatusPending).
			Update("escalated_level", detail.CurrentLevel)
		if err := db.Error; err != nil {
			return err
		}
		if db.RowsAffected != 1 {
			return bizerror.ErrConcurrentModification
		}

		now := types.CurrentTimestamp()
		if err := appendHistory(tx, id, detail.CurrentLevel, &sec.Identity, domain.ActionEscalated,
			"escalated to "+string(target), now); err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourceTypeApprovalRequest, id, detail.EntityCode, event.EventCategoryTransited,
			[]event.UpdatedProperty{{PropertyName: "EscalatedLevel", PropertyDesc: "EscalatedLevel",
				OldValue: strconv.Itoa(detail.EscalatedLevel), NewValue: strconv.Itoa(detail.CurrentLevel)}},
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

	if ev != nil && event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return updated, nil
}

// EscalationSweep escalates every overdue pending request whose current level
// has not been escalated yet. The escalated_level marker keeps each level
// escalated at most once across periodic runs.
func EscalationSweep() error {
	sec := escalationRobot

	var candidates []domain.ApprovalRequest
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where("status = ? AND due_at < ? AND escalated_level < current_level",
		domain.RequestStatusPending, types.Timestamp(time.Now())).
		Find(&candidates).Error; err != nil {
		return err
	}

	for _, r := range candidates {
		if !sla.IsOverdue(&r, time.Now()) {
			continue
		}
		if _, err := EscalateRequestFunc(r.ID, sec); err != nil {
			logrus.Warnf("escalate request %v failed: %v", r.ID, err)
			continue
		}
		logrus.Infof("request %v escalated at level %d", r.ID, r.CurrentLevel)
	}
	return nil
}

// ScheduleEscalationRun starts one sweep in the background; a second call
// while a sweep is running is refused. Driven by an external periodic
// trigger, this core only defines the policy.
func ScheduleEscalationRun(sec *session.Session) (bool, error) {
	if !sec.Perms.HasAdminRole() {
		return false, bizerror.ErrForbidden
	}

	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := EscalationSweepFunc(); err != nil {
			logrus.Errorf("escalation sweep failed: %v", err)
		}
	}()
	waitRunning.Wait()
	return true, nil
}
