package approval_test

import (
	"context"
	"siteflow/bizerror"
	"siteflow/domain"
	"siteflow/domain/approval"
	"siteflow/domain/document"
	"siteflow/domain/flow"
	"siteflow/event"
	"siteflow/persistence"
	"siteflow/session"
	"siteflow/testinfra"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartMysqlTestDatabase("siteflow")
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowDefinition{}, &domain.ApprovalLevel{},
		&domain.ApprovalRequest{}, &domain.ApprovalRequestLevel{}, &domain.ApprovalHistory{},
		&domain.SLAConfig{}, &domain.Document{}, &event.EventRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
	*testDatabase = db
}
func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

var (
	adminSec     = testinfra.BuildSecCtx(1, nil, session.SystemAdminPermission)
	submitterSec = testinfra.BuildSecCtx(10, nil)
	officerSec   = testinfra.BuildSecCtx(20, []domain.Role{domain.RolePurchaseOfficer})
	managerSec   = testinfra.BuildSecCtx(30, []domain.Role{domain.RoleProjectManager})
	directorSec  = testinfra.BuildSecCtx(40, []domain.Role{domain.RoleDirector})
	approverSec  = testinfra.BuildSecCtx(50, []domain.Role{domain.RoleApprover})
)

// purchase order chain: officer always, manager from 500000, director from 5000000
func createPurchaseChain(t *testing.T) *domain.WorkflowDefinitionDetail {
	detail, err := flow.CreateWorkflowDefinition(&flow.DefinitionCreation{
		Name: "po approval", Module: domain.ModulePurchase, Entity: domain.EntityPurchaseOrder,
		SLAHours: 48, Active: true,
		Levels: []flow.LevelCreation{
			{Level: 1, Role: domain.RolePurchaseOfficer, SLAHours: 8},
			{Level: 2, Role: domain.RoleProjectManager, Threshold: int64Ptr(500000), EscalateToRole: domain.RoleApprover, EscalateAfterHours: 4},
			{Level: 3, Role: domain.RoleDirector, Threshold: int64Ptr(5000000)},
		},
	}, adminSec)
	assert.Nil(t, err)
	return detail
}

func createDraftPurchaseOrder(t *testing.T, code string, amount int64) *domain.Document {
	doc, err := document.CreateDocument(&document.DocumentCreation{
		Code: code, Name: "purchase " + code,
		Module: domain.ModulePurchase, Entity: domain.EntityPurchaseOrder, Amount: amount,
	}, submitterSec)
	assert.Nil(t, err)
	return doc
}

func TestSubmitDocument(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should refuse submission of a non-draft document", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-001", 600000)
		_, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())

		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(result).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrAlreadySubmitted))
	})

	t.Run("should auto approve when no active definition governs the pair", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		doc, err := document.CreateDocument(&document.DocumentCreation{
			Code: "WO-001", Name: "site work order",
			Module: domain.ModuleSite, Entity: domain.EntityWorkOrder, Amount: 123456,
		}, submitterSec)
		Expect(err).To(BeNil())

		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(result.AutoApproved).To(BeTrue())
		Expect(result.Request).To(BeNil())
		Expect(result.Document.Status).To(Equal(domain.DocStatusApproved))

		var requests []domain.ApprovalRequest
		Expect(testDatabase.DS.GormDB(context.Background()).Model(&domain.ApprovalRequest{}).Scan(&requests).Error).To(BeNil())
		Expect(requests).To(BeEmpty())
	})

	t.Run("should auto approve when no level reaches the amount", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		_, err := flow.CreateWorkflowDefinition(&flow.DefinitionCreation{
			Name: "large work orders only", Module: domain.ModuleEngineering, Entity: domain.EntityWorkOrder, Active: true,
			Levels: []flow.LevelCreation{
				{Level: 1, Role: domain.RoleProjectManager, Threshold: int64Ptr(1000000)},
			},
		}, adminSec)
		Expect(err).To(BeNil())

		doc, err := document.CreateDocument(&document.DocumentCreation{
			Code: "WO-002", Name: "small work order",
			Module: domain.ModuleEngineering, Entity: domain.EntityWorkOrder, Amount: 500,
		}, submitterSec)
		Expect(err).To(BeNil())

		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(result.AutoApproved).To(BeTrue())
		Expect(result.Document.Status).To(Equal(domain.DocStatusApproved))
	})

	t.Run("should create a pending request with frozen level snapshot", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		definition := createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-002", 600000)

		before := time.Now()
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(result.AutoApproved).To(BeFalse())
		Expect(result.Document.Status).To(Equal(domain.DocStatusPending))

		request := result.Request
		Expect(request.WorkflowID).To(Equal(definition.ID))
		Expect(request.Status).To(Equal(domain.RequestStatusPending))
		Expect(request.CurrentLevel).To(Equal(1))
		Expect(request.TotalLevels).To(Equal(2))
		Expect(request.EntityID).To(Equal(doc.ID))
		Expect(request.EntityCode).To(Equal("PO-002"))
		Expect(request.SubmittedBy).To(Equal(submitterSec.Identity.ID))

		Expect(len(request.Levels)).To(Equal(2))
		Expect(request.Levels[0].Role).To(Equal(domain.RolePurchaseOfficer))
		Expect(request.Levels[0].SLAHours).To(Equal(8))
		Expect(request.Levels[1].Role).To(Equal(domain.RoleProjectManager))
		// level 2 has no own sla, the definition default applies
		Expect(request.Levels[1].SLAHours).To(Equal(48))

		// due date follows the first level's sla
		Expect(request.DueAt.Time().Sub(before) > 7*time.Hour).To(BeTrue())
		Expect(request.DueAt.Time().Sub(before) < 9*time.Hour).To(BeTrue())

		histories, err := approval.GetHistory(request.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(len(histories)).To(Equal(1))
		Expect(histories[0].Action).To(Equal(domain.ActionSubmitted))
		Expect(histories[0].Level).To(Equal(1))
	})

	t.Run("should keep in-flight requests unaffected by definition edits", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		definition := createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-003", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())

		_, err = flow.UpdateWorkflowDefinition(definition.ID, &flow.DefinitionUpdating{
			Name: "po approval v2", Active: true,
			Levels: []flow.LevelCreation{
				{Level: 1, Role: domain.RoleAccountant},
			},
		}, adminSec)
		Expect(err).To(BeNil())

		detail, err := approval.DetailApprovalRequest(result.Request.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(len(detail.Levels)).To(Equal(2))
		Expect(detail.Levels[0].Role).To(Equal(domain.RolePurchaseOfficer))

		// the original chain still authorizes its snapshot roles
		updated, err := approval.ApproveRequest(detail.ID, &approval.Approving{ExpectedLevel: 1}, officerSec)
		Expect(err).To(BeNil())
		Expect(updated.CurrentLevel).To(Equal(2))
	})
}

func TestApproveRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should refuse an actor without the current level role", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-010", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())

		_, err = approval.ApproveRequest(result.Request.ID, &approval.Approving{ExpectedLevel: 1}, submitterSec)
		Expect(err).To(Equal(bizerror.ErrNotAuthorized))

		// level 2 role may not act at level 1
		_, err = approval.ApproveRequest(result.Request.ID, &approval.Approving{ExpectedLevel: 1}, managerSec)
		Expect(err).To(Equal(bizerror.ErrNotAuthorized))
	})

	t.Run("should refuse a stale expected level", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-011", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())

		_, err = approval.ApproveRequest(result.Request.ID, &approval.Approving{ExpectedLevel: 2}, officerSec)
		Expect(err).To(Equal(bizerror.ErrConcurrentModification))
	})

	t.Run("should advance the chain level by level and approve the document at the end", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-012", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		requestID := result.Request.ID

		updated, err := approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 1, Remarks: "checked"}, officerSec)
		Expect(err).To(BeNil())
		Expect(updated.CurrentLevel).To(Equal(2))
		Expect(updated.Status).To(Equal(domain.RequestStatusPending))

		// the stale level 1 view is now refused
		_, err = approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 1}, officerSec)
		Expect(err).To(Equal(bizerror.ErrConcurrentModification))

		updated, err = approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 2, Remarks: "fine"}, managerSec)
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(domain.RequestStatusApproved))
		Expect(updated.ApprovedBy).To(Equal(managerSec.Identity.ID))
		Expect(updated.Remarks).To(Equal("fine"))

		persisted, err := document.DetailDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(persisted.Status).To(Equal(domain.DocStatusApproved))

		histories, err := approval.GetHistory(requestID, submitterSec)
		Expect(err).To(BeNil())
		Expect(len(histories)).To(Equal(3))
		Expect(histories[0].Action).To(Equal(domain.ActionSubmitted))
		Expect(histories[1].Action).To(Equal(domain.ActionApproved))
		Expect(histories[1].Level).To(Equal(1))
		Expect(histories[2].Action).To(Equal(domain.ActionApproved))
		Expect(histories[2].Level).To(Equal(2))

		// terminal requests refuse further decisions
		_, err = approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 2}, managerSec)
		Expect(err).To(Equal(bizerror.ErrInvalidState))
	})

	t.Run("should resolve chain length from the document amount", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)

		small, err := approval.SubmitDocument(createDraftPurchaseOrder(t, "PO-013", 448400).ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(small.Request.TotalLevels).To(Equal(1))

		medium, err := approval.SubmitDocument(createDraftPurchaseOrder(t, "PO-014", 4000000).ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(medium.Request.TotalLevels).To(Equal(2))

		large, err := approval.SubmitDocument(createDraftPurchaseOrder(t, "PO-015", 6000000).ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(large.Request.TotalLevels).To(Equal(3))

		// the single level chain terminates on the first approval
		updated, err := approval.ApproveRequest(small.Request.ID, &approval.Approving{ExpectedLevel: 1}, officerSec)
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(domain.RequestStatusApproved))
	})
}

func TestRejectRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should terminate the chain at the current level", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-020", 6000000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		requestID := result.Request.ID

		_, err = approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 1}, officerSec)
		Expect(err).To(BeNil())

		updated, err := approval.RejectRequest(requestID, &approval.Rejecting{ExpectedLevel: 2, Remarks: "budget exceeded"}, managerSec)
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(domain.RequestStatusRejected))
		Expect(updated.Remarks).To(Equal("budget exceeded"))

		// the remaining level is never consulted, the document is editable again
		persisted, err := document.DetailDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(persisted.Status).To(Equal(domain.DocStatusRejected))
		Expect(domain.CanEdit(persisted.Status)).To(BeTrue())

		_, err = approval.ApproveRequest(requestID, &approval.Approving{ExpectedLevel: 2}, managerSec)
		Expect(err).To(Equal(bizerror.ErrInvalidState))

		histories, err := approval.GetHistory(requestID, submitterSec)
		Expect(err).To(BeNil())
		Expect(histories[len(histories)-1].Action).To(Equal(domain.ActionRejected))
	})

	t.Run("should require the current level role to reject", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-021", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())

		_, err = approval.RejectRequest(result.Request.ID, &approval.Rejecting{ExpectedLevel: 1, Remarks: "no"}, directorSec)
		Expect(err).To(Equal(bizerror.ErrNotAuthorized))
	})

	t.Run("should allow a rejected document to be edited and resubmitted as a new chain", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		doc := createDraftPurchaseOrder(t, "PO-022", 600000)
		result, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		_, err = approval.RejectRequest(result.Request.ID, &approval.Rejecting{ExpectedLevel: 1, Remarks: "rework"}, officerSec)
		Expect(err).To(BeNil())

		_, err = document.UpdateDocument(doc.ID, &document.DocumentUpdating{Name: "purchase reworked", Amount: 400000}, submitterSec)
		Expect(err).To(BeNil())
		// back through draft before routing again
		Expect(testDatabase.DS.GormDB(context.Background()).Model(&domain.Document{}).
			Where("id = ?", doc.ID).Update("status", domain.DocStatusDraft).Error).To(BeNil())

		second, err := approval.SubmitDocument(doc.ID, submitterSec)
		Expect(err).To(BeNil())
		Expect(second.Request.ID).ToNot(Equal(result.Request.ID))
		Expect(second.Request.TotalLevels).To(Equal(1))
	})
}

func TestListPendingForRole(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should list only requests awaiting the role at their current level", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		createPurchaseChain(t)
		first, err := approval.SubmitDocument(createDraftPurchaseOrder(t, "PO-030", 600000).ID, submitterSec)
		Expect(err).To(BeNil())
		second, err := approval.SubmitDocument(createDraftPurchaseOrder(t, "PO-031", 700000).ID, submitterSec)
		Expect(err).To(BeNil())

		inbox, err := approval.ListPendingForRole(&approval.PendingQuery{Role: domain.RolePurchaseOfficer}, officerSec)
		Expect(err).To(BeNil())
		Expect(len(inbox)).To(Equal(2))

		inbox, err = approval.ListPendingForRole(&approval.PendingQuery{Role: domain.RoleProjectManager}, managerSec)
		Expect(err).To(BeNil())
		Expect(inbox).To(BeEmpty())

		_, err = approval.ApproveRequest(first.Request.ID, &approval.Approving{ExpectedLevel: 1}, officerSec)
		Expect(err).To(BeNil())

		inbox, err = approval.ListPendingForRole(&approval.PendingQuery{Role: domain.RolePurchaseOfficer}, officerSec)
		Expect(err).To(BeNil())
		Expect(len(inbox)).To(Equal(1))
		Expect(inbox[0].ID).To(Equal(second.Request.ID))

		inbox, err = approval.ListPendingForRole(&approval.PendingQuery{Role: domain.RoleProjectManager}, managerSec)
		Expect(err).To(BeNil())
		Expect(len(inbox)).To(Equal(1))
		Expect(inbox[0].ID).To(Equal(first.Request.ID))
	})
}

func TestGetHistory(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should report a missing request", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		_, err := approval.GetHistory(404, submitterSec)
		Expect(err).ToNot(BeNil())
	})
}
