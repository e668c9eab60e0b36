package indices

import (
	"net/http"
	"siteflow/session"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexSyncs = "/v1/index-syncs"
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexSyncs, middleWares...)
	g.POST("", handleIndexSync)
}

func handleIndexSync(c *gin.Context) {
	success, err := ScheduleNewSyncRunFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": success})
}
