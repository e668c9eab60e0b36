package servehttp_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"siteflow/bizerror"
	"siteflow/domain"
	"siteflow/domain/approval"
	"siteflow/domain/sla"
	"siteflow/servehttp"
	"siteflow/session"
	"siteflow/testinfra"
	"strings"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestSLAConfigRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterSLAConfigHandler(router)

	t.Run("should be able to validate parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/sla-configs", bytes.NewReader([]byte(`{"module": "Purchase"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param",
			"message":"Key: 'SLAConfigCreation.Entity' Error:Field validation for 'Entity' failed on the 'required' tag\n` +
			`Key: 'SLAConfigCreation.SLAHours' Error:Field validation for 'SLAHours' failed on the 'required' tag",
			"data":null}`))
	})

	t.Run("should map a non-admin actor to 403", func(t *testing.T) {
		sla.CreateSLAConfigFunc = func(c *sla.SLAConfigCreation, s *session.Session) (*domain.SLAConfig, error) {
			return nil, bizerror.ErrForbidden
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/sla-configs", bytes.NewReader([]byte(
			`{"module": "Purchase", "entity": "PO", "slaHours": 24}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})

	t.Run("should create sla config successfully", func(t *testing.T) {
		demoTime := types.TimestampOfDate(2021, 1, 1, 1, 0, 0, 0, time.Now().Location())
		timeBytes, err := demoTime.Time().MarshalJSON()
		Expect(err).To(BeNil())
		timeString := strings.Trim(string(timeBytes), `"`)

		var c1 sla.SLAConfigCreation
		sla.CreateSLAConfigFunc = func(c *sla.SLAConfigCreation, s *session.Session) (*domain.SLAConfig, error) {
			c1 = *c
			return &domain.SLAConfig{ID: 300, Module: c.Module, Entity: c.Entity,
				SLAHours: c.SLAHours, EscalateRole: c.EscalateRole, Active: c.Active, CreateTime: demoTime}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/sla-configs", bytes.NewReader([]byte(
			`{"module": "Purchase", "entity": "PO", "slaHours": 24, "escalateRole": "Director", "active": true}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id": "300", "module": "Purchase", "entity": "PO", "slaHours": 24,
			"escalateRole": "Director", "active": true, "createTime": "` + timeString + `"}`))
		Expect(c1).To(Equal(sla.SLAConfigCreation{Module: domain.ModulePurchase, Entity: domain.EntityPurchaseOrder,
			SLAHours: 24, EscalateRole: domain.RoleDirector, Active: true}))
	})

	t.Run("should query sla configs with filters", func(t *testing.T) {
		var q1 sla.SLAConfigQuery
		sla.QuerySLAConfigsFunc = func(query *sla.SLAConfigQuery, s *session.Session) (*[]domain.SLAConfig, error) {
			q1 = *query
			return &[]domain.SLAConfig{}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/sla-configs?module=Site&entity=MR", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
		Expect(q1).To(Equal(sla.SLAConfigQuery{Module: domain.ModuleSite, Entity: domain.EntityMaterialRequisition}))
	})
}

func TestEscalationRunRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterEscalationRunHandler(router)

	t.Run("should report whether a sweep was scheduled", func(t *testing.T) {
		approval.ScheduleEscalationRunFunc = func(s *session.Session) (bool, error) {
			return true, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/escalation-runs", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"result": true}`))

		approval.ScheduleEscalationRunFunc = func(s *session.Session) (bool, error) {
			return false, nil
		}
		req = httptest.NewRequest(http.MethodPost, "/v1/escalation-runs", nil)
		status, body, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"result": false}`))
	})

	t.Run("should map a non-admin actor to 403", func(t *testing.T) {
		approval.ScheduleEscalationRunFunc = func(s *session.Session) (bool, error) {
			return false, bizerror.ErrForbidden
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/escalation-runs", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})
}
