package indices

import (
	"fmt"
	"siteflow/client/es"
	"siteflow/domain"
	"siteflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	RequestIndexName = "approval-requests"
)

type RequestDocument struct {
	domain.ApprovalRequestDetail

	// role whose inbox the request currently sits in
	PendingRole domain.Role `json:"pendingRole,omitempty"`
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexRequests(requests []domain.ApprovalRequestDetail, s *session.Session) error {
	docs := make([]RequestDocument, 0, len(requests))
	for _, r := range requests {
		doc := RequestDocument{ApprovalRequestDetail: r}
		if r.Status == domain.RequestStatusPending {
			if level, found := r.FindLevel(r.CurrentLevel); found {
				doc.PendingRole = level.EffectiveRole(r.EscalatedLevel)
			}
		}
		docs = append(docs, doc)
	}

	if err := saveRequestDocuments(docs, s); err != nil {
		return err
	}
	return nil
}

func saveRequestDocuments(docs []RequestDocument, s *session.Session) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(RequestIndexName, doc.ID, doc, s); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index approval request %d %s %s\n", doc.ID, doc.EntityCode, err)
		} else {
			logrus.Infof("index approval request %d %s successfully\n", doc.ID, doc.EntityCode)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
