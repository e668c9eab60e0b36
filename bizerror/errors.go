package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("record not found")

	ErrAlreadySubmitted       = errors.New("document already submitted")
	ErrInvalidState           = errors.New("request is not in an actionable state")
	ErrNotAuthorized          = errors.New("actor role is not authorized for current level")
	ErrConcurrentModification = errors.New("request was modified concurrently")
	ErrDocumentLocked         = errors.New("document is locked")
	ErrWorkflowIsReferenced   = errors.New("workflow definition is referenced")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrInvalidWorkflow reports the specific configuration rule a workflow
// definition violates, or that the definition is not usable for resolution.
type ErrInvalidWorkflow struct {
	Rule string
}

func (e *ErrInvalidWorkflow) Error() string {
	return "invalid workflow definition: " + e.Rule
}
func (e *ErrInvalidWorkflow) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "workflow.invalid_definition", Message: e.Error(), Data: e.Rule}
}
