package main

import (
	"net/http"
	"siteflow/bizerror"
	"siteflow/client/es"
	"siteflow/common"
	"siteflow/domain"
	"siteflow/event"
	"siteflow/indices"
	"siteflow/infra/tracing"
	"siteflow/persistence"
	"siteflow/servehttp"
	"siteflow/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	closer, err := tracing.Bootstrap(common.GetServiceName())
	if err != nil {
		logrus.Fatalf("tracer bootstrap failed %v\n", err)
	}
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(session.NewRobotSession("migration").Context).AutoMigrate(
		&domain.WorkflowDefinition{}, &domain.ApprovalLevel{},
		&domain.ApprovalRequest{}, &domain.ApprovalRequestLevel{}, &domain.ApprovalHistory{},
		&domain.SLAConfig{}, &domain.Document{},
		&event.EventRecord{}).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	es.ActiveESClient = es.CreateClientFromEnv()
	event.EventHandlers = append(event.EventHandlers, indices.IndexRequestEventHandle)

	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	secured := session.TrustedHeaderFilter()
	servehttp.RegisterWorkflowDefinitionHandler(engine, secured)
	servehttp.RegisterDocumentHandler(engine, secured)
	servehttp.RegisterApprovalRequestHandler(engine, secured)
	servehttp.RegisterSLAConfigHandler(engine, secured)
	servehttp.RegisterEscalationRunHandler(engine, secured)
	servehttp.RegisterRequestSearchHandler(engine, secured)
	indices.RegisterIndicesRestAPI(engine, secured)

	err = engine.Run(":80")
	if err != nil {
		panic(err)
	}
}
