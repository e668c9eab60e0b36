package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"siteflow/domain"
	"siteflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx builds a session for service-level tests.
func BuildSecCtx(uid types.ID, roles []domain.Role, perms ...string) *session.Session {
	return &session.Session{
		Identity:      session.Identity{ID: uid, Name: "user_" + uid.String()},
		Perms:         perms,
		ApprovalRoles: roles,
		Context:       context.Background(),
	}
}

// ExecuteRequest drives a request through the full gin engine and returns the
// response status and body.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	bodyBytes, _ := ioutil.ReadAll(w.Body)
	return w.Code, string(bodyBytes), w
}
