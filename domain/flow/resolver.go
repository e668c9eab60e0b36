package flow

import (
	"errors"
	"siteflow/bizerror"
	"siteflow/domain"
)

var ResolveLevelsFunc = ResolveLevels

// ResolveLevels returns the approval levels applying to a document of the
// given amount, in ascending level order. A level with no threshold always
// applies; a level with a threshold applies when amount >= threshold.
// Because thresholds are non-decreasing across levels, the result is always
// a prefix-compatible subset of the definition's levels. An empty result
// means the document requires no approval.
func ResolveLevels(definition *domain.WorkflowDefinitionDetail, amount int64) ([]domain.ApprovalLevel, error) {
	if amount < 0 {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("amount must not be negative")}
	}
	if !definition.Active {
		return nil, &bizerror.ErrInvalidWorkflow{Rule: "definition '" + definition.Name + "' is not active"}
	}

	resolved := []domain.ApprovalLevel{}
	lastLevel := 0
	lastThreshold := int64(-1)
	for _, l := range definition.Levels {
		if l.Level != lastLevel+1 {
			return nil, &bizerror.ErrInvalidWorkflow{Rule: "levels must be numbered contiguously from 1"}
		}
		lastLevel = l.Level
		if l.Threshold != nil {
			if *l.Threshold < lastThreshold {
				return nil, &bizerror.ErrInvalidWorkflow{Rule: "thresholds must be non-decreasing with level number"}
			}
			lastThreshold = *l.Threshold
		}

		if l.Threshold == nil || amount >= *l.Threshold {
			resolved = append(resolved, l)
		}
	}
	return resolved, nil
}
