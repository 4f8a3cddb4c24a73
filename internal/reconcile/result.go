package reconcile

import (
	"encoding/json"
	"strings"
)

// Status is the outcome reported back to the orchestrator.
type Status string

const (
	Success Status = "SUCCESS"
	Failed  Status = "FAILED"
)

// maxReasonLen keeps the whole envelope well under the orchestrator's 4 KiB limit.
const maxReasonLen = 1024

// Result is the response envelope. Exactly one is produced per request.
type Result struct {
	Status             Status         `json:"Status"`
	Reason             string         `json:"Reason,omitempty"`
	PhysicalResourceID string         `json:"PhysicalResourceId"`
	StackID            string         `json:"StackId"`
	RequestID          string         `json:"RequestId"`
	LogicalResourceID  string         `json:"LogicalResourceId"`
	Data               map[string]any `json:"Data,omitempty"`
}

// succeed builds a SUCCESS result echoing the request identifiers.
func succeed(req Request, physicalID string, data map[string]any) Result {
	return Result{
		Status:             Success,
		PhysicalResourceID: physicalID,
		StackID:            req.StackID,
		RequestID:          req.RequestID,
		LogicalResourceID:  req.LogicalResourceID,
		Data:               data,
	}
}

// fail builds a FAILED result. The reason is never empty.
func fail(req Request, physicalID string, err error) Result {
	reason := ""
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	if reason == "" {
		reason = "reconciliation failed"
	}
	if len(reason) > maxReasonLen {
		reason = strings.ToValidUTF8(reason[:maxReasonLen-3], "") + "..."
	}
	return Result{
		Status:             Failed,
		Reason:             reason,
		PhysicalResourceID: physicalID,
		StackID:            req.StackID,
		RequestID:          req.RequestID,
		LogicalResourceID:  req.LogicalResourceID,
	}
}

// Encode serializes the result as the JSON response envelope.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}
