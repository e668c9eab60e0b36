package servehttp

import (
	"net/http"
	"siteflow/indices/search"
	"siteflow/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func RegisterRequestSearchHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/search", middleWares...)
	g.GET("approval-requests", handleSearchRequests)
}

func handleSearchRequests(c *gin.Context) {
	query := search.RequestSearchQuery{}
	_ = c.MustBindWith(&query, binding.Query)

	docs, err := search.SearchPendingRequestsFunc(query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, docs)
}
