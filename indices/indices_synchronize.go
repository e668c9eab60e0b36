package indices

import (
	"fmt"
	"siteflow/bizerror"
	"siteflow/client/es"
	"siteflow/domain"
	"siteflow/domain/approval"
	"siteflow/event"
	"siteflow/session"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	RequestIndexEventHandlerName = "requestIndexer"
	indexRobot                   = session.NewRobotSession("index-robot", session.SystemAdminPermission)

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc    = IndicesFullSync
	ScheduleNewSyncRunFunc = ScheduleNewSyncRun
)

func ScheduleNewSyncRun(sec *session.Session) (bool, error) {
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
		IndicesFullSyncFunc()
	}()
	waitRunning.Wait()
	return true, nil
}

var (
	SyncBatchSize = 500

	// keeps a full re-index from starving interactive search traffic
	syncRateLimit = rate.NewLimiter(rate.Limit(2), 1)
)

func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	page := 1
	for {
		if err := syncRateLimit.Wait(indexRobot.Context); err != nil {
			return err
		}

		requests, err := approval.LoadRequestsFunc(page, SyncBatchSize, indexRobot)
		if err != nil {
			logrus.Warnf("indices full sync: error on retrieve requests(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
			page++
			continue
		}

		if len(requests) == 0 {
			logrus.Infof("indices full sync: there are no more requests to index")
			return nil // loop exit
		}

		if err := IndexRequests(requests, indexRobot); err != nil {
			logrus.Warnf("indices full sync: error on index requests(page = %d, pageSize = %d): %v", page, SyncBatchSize, err)
		}
		page++
	}
}

func IndexRequestEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != event.SourceTypeApprovalRequest {
		return nil
	}

	if e.EventCategory == event.EventCategoryDeleted {
		err := es.DeleteDocumentByIdFunc(RequestIndexName, e.Event.SourceId, indexRobot)
		if err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("delete request index %d, %v", e.Event.SourceId, err),
				HandlerIdentifier: RequestIndexEventHandlerName,
			}
		}
		return &event.EventHandleResult{Success: true, HandlerIdentifier: RequestIndexEventHandlerName}
	}

	detail, err := approval.DetailApprovalRequestFunc(e.Event.SourceId, indexRobot)
	if err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("detail request when index request %d, %v", e.Event.SourceId, err),
			HandlerIdentifier: RequestIndexEventHandlerName,
		}
	}
	if err := IndexRequests([]domain.ApprovalRequestDetail{*detail}, indexRobot); err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("index request %d, %v", e.Event.SourceId, err),
			HandlerIdentifier: RequestIndexEventHandlerName,
		}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: RequestIndexEventHandlerName}
}
