package servehttp

import (
	"net/http"
	"siteflow/bizerror"
	"siteflow/domain/approval"
	"siteflow/domain/sla"
	"siteflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterSLAConfigHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/sla-configs", middleWares...)

	handler := &slaConfigHandler{validator: validator.New()}

	g.POST("", handler.handleCreate)
	g.GET("", handler.handleQuery)
}

func RegisterEscalationRunHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/escalation-runs", middleWares...)
	g.POST("", handleEscalationRun)
}

type slaConfigHandler struct {
	validator *validator.Validate
}

func (h *slaConfigHandler) handleCreate(c *gin.Context) {
	creation := sla.SLAConfigCreation{}
	err := c.ShouldBindBodyWith(&creation, binding.JSON)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}

	record, err := sla.CreateSLAConfigFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, record)
}

func (h *slaConfigHandler) handleQuery(c *gin.Context) {
	query := sla.SLAConfigQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	configs, err := sla.QuerySLAConfigsFunc(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, configs)
}

func handleEscalationRun(c *gin.Context) {
	scheduled, err := approval.ScheduleEscalationRunFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": scheduled})
}
