package domain

// DocStatus is the lifecycle state of a governed document.
type DocStatus string

const (
	DocStatusDraft     DocStatus = "Draft"
	DocStatusPending   DocStatus = "Pending"
	DocStatusApproved  DocStatus = "Approved"
	DocStatusRejected  DocStatus = "Rejected"
	DocStatusCancelled DocStatus = "Cancelled"
)

var knownDocStatuses = map[DocStatus]bool{
	DocStatusDraft: true, DocStatusPending: true, DocStatusApproved: true,
	DocStatusRejected: true, DocStatusCancelled: true,
}

func (s DocStatus) IsValid() bool {
	return knownDocStatuses[s]
}

// IsLocked reports whether a document in the given status refuses field
// mutation. Approved documents only allow reads and downstream actions,
// Cancelled documents only reads. Pending documents stay editable so a
// requester can correct a document while the chain is in flight.
func IsLocked(status DocStatus) bool {
	return status == DocStatusApproved || status == DocStatusCancelled
}

func CanEdit(status DocStatus) bool {
	return !IsLocked(status)
}
