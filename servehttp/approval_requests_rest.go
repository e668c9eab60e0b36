package servehttp

import (
	"net/http"
	"siteflow/bizerror"
	"siteflow/common"
	"siteflow/domain/approval"
	"siteflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterApprovalRequestHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/approval-requests", middleWares...)

	handler := &approvalRequestHandler{validator: validator.New()}

	g.GET("", handler.handleQueryPending)
	g.GET(":id", handler.handleDetail)
	g.POST(":id/approvals", handler.handleApprove)
	g.POST(":id/rejections", handler.handleReject)
	g.GET(":id/histories", handler.handleHistories)
}

type approvalRequestHandler struct {
	validator *validator.Validate
}

func (h *approvalRequestHandler) handleQueryPending(c *gin.Context) {
	query := approval.PendingQuery{}
	_ = c.MustBindWith(&query, binding.Query)
	if err := h.validator.Struct(query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	inbox, err := approval.ListPendingForRoleFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, inbox)
}

func (h *approvalRequestHandler) handleDetail(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	detail, err := approval.DetailApprovalRequestFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *approvalRequestHandler) handleApprove(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	approving := approval.Approving{}
	err = c.ShouldBindBodyWith(&approving, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := approval.ApproveRequestFunc(id, &approving, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *approvalRequestHandler) handleReject(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	rejecting := approval.Rejecting{}
	err = c.ShouldBindBodyWith(&rejecting, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	detail, err := approval.RejectRequestFunc(id, &rejecting, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *approvalRequestHandler) handleHistories(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, &common.ErrorBody{Code: "common.bad_param", Message: "invalid id '" + c.Param("id") + "'"})
		return
	}

	histories, err := approval.GetHistoryFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, histories)
}
