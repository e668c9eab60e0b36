package search

import (
	"encoding/json"
	"fmt"
	"siteflow/client/es"
	"siteflow/domain"
	"siteflow/indices"
	"siteflow/session"
	"strings"
)

var (
	SearchPendingRequestsFunc = SearchPendingRequests
)

type RequestSearchQuery struct {
	Role        domain.Role       `form:"role"`
	Module      domain.Module     `form:"module"`
	Entity      domain.EntityType `form:"entity"`
	EntityCode  string            `form:"entityCode"`
	OverdueOnly bool              `form:"overdueOnly"`
}

// SearchPendingRequests serves inbox views off the approval request index.
func SearchPendingRequests(q RequestSearchQuery, s *session.Session) ([]indices.RequestDocument, error) {
	filters := make([]es.H, 0, 5)
	filters = append(filters, es.H{"term": es.H{"status": domain.RequestStatusPending}})
	if q.Role != "" {
		filters = append(filters, es.H{"term": es.H{"pendingRole": q.Role}})
	}
	if q.Module != "" {
		filters = append(filters, es.H{"term": es.H{"module": q.Module}})
	}
	if q.Entity != "" {
		filters = append(filters, es.H{"term": es.H{"entityType": q.Entity}})
	}
	if q.EntityCode != "" {
		filters = append(filters, es.H{"match": es.H{"entityCode": es.H{"query": q.EntityCode, "operator": "AND"}}})
	}
	if q.OverdueOnly {
		filters = append(filters, es.H{"term": es.H{"overdue": true}})
	}

	sorts := make([]es.H, 0, 1)
	sorts = append(sorts, es.H{"dueAt": es.H{"order": "asc"}})

	root := es.H{"bool": es.H{"filter": filters}}
	r, err := es.SearchFunc(indices.RequestIndexName, es.H{"size": 10000, "query": root, "sort": sorts}, s)
	if err != nil {
		return nil, err
	}

	docs := make([]indices.RequestDocument, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := indices.RequestDocument{}
		if err := json.NewDecoder(strings.NewReader(string(hit.Source))).Decode(&doc); err != nil {
			return nil, fmt.Errorf(string(hit.Source))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
