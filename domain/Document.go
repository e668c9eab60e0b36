package domain

import (
	"github.com/fundwit/go-commons/types"
)

// Document is the registry record of a governed document. The source module
// (purchasing, contracts, accounts...) owns the document's content; siteflow
// only tracks the fields approval routing needs.
type Document struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Code string   `json:"code"`
	Name string   `json:"name"`

	Module Module     `json:"module"`
	Entity EntityType `json:"entity"`

	Amount int64     `json:"amount"`
	Status DocStatus `json:"status"`

	CreatorID   types.ID `json:"creatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreatorName string   `json:"creatorName"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (d *Document) TableName() string {
	return "documents"
}
