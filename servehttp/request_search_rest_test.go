package servehttp_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"siteflow/bizerror"
	"siteflow/domain"
	"siteflow/indices"
	"siteflow/indices/search"
	"siteflow/servehttp"
	"siteflow/session"
	"siteflow/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestSearchRequestsRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterRequestSearchHandler(router)

	t.Run("should pass query filters through", func(t *testing.T) {
		demoTime := types.TimestampOfDate(2021, 1, 1, 1, 0, 0, 0, time.Now().Location())

		var q1 search.RequestSearchQuery
		search.SearchPendingRequestsFunc = func(q search.RequestSearchQuery, s *session.Session) ([]indices.RequestDocument, error) {
			q1 = q
			return []indices.RequestDocument{
				{ApprovalRequestDetail: *buildDemoRequestDetail(demoTime), PendingRole: domain.RolePurchaseOfficer},
			}, nil
		}

		req := httptest.NewRequest(http.MethodGet,
			"/v1/search/approval-requests?role=PurchaseOfficer&module=Purchase&entityCode=PO-77&overdueOnly=true", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"pendingRole":"PurchaseOfficer"`))
		Expect(body).To(ContainSubstring(`"entityCode":"PO-77"`))
		Expect(q1).To(Equal(search.RequestSearchQuery{Role: domain.RolePurchaseOfficer, Module: domain.ModulePurchase,
			EntityCode: "PO-77", OverdueOnly: true}))
	})

	t.Run("should be able to handle error", func(t *testing.T) {
		search.SearchPendingRequestsFunc = func(q search.RequestSearchQuery, s *session.Session) ([]indices.RequestDocument, error) {
			return nil, errors.New("search is down")
		}
		req := httptest.NewRequest(http.MethodGet, "/v1/search/approval-requests", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"search is down","data":null}`))
	})
}
