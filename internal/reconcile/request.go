// Package reconcile implements the custom-resource contract between the
// infrastructure orchestrator and the provisioner's handlers: the request and
// result envelopes, the dispatcher that turns every request into exactly one
// result, and the signalers that deliver that result.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RequestType is the lifecycle event of a request.
type RequestType string

const (
	Create RequestType = "Create"
	Update RequestType = "Update"
	Delete RequestType = "Delete"
)

func (t RequestType) valid() bool {
	return t == Create || t == Update || t == Delete
}

// Request is an inbound reconciliation request. It is never mutated.
type Request struct {
	RequestType        RequestType `json:"RequestType"`
	ResourceType       string      `json:"ResourceType,omitempty"`
	ResourceProperties Properties  `json:"ResourceProperties"`
	StackID            string      `json:"StackId"`
	RequestID          string      `json:"RequestId"`
	LogicalResourceID  string      `json:"LogicalResourceId"`
	PhysicalResourceID string      `json:"PhysicalResourceId,omitempty"`
	ResponseURL        string      `json:"ResponseURL,omitempty"`
}

// ParseRequest decodes a JSON request envelope.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, Malformed("decode request", err)
	}
	return req, nil
}

// Properties are the handler-specific ResourceProperties of a request.
type Properties map[string]any

// String returns the non-empty string property key.
func (p Properties) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", Malformed("property "+key, ErrMissingProperty)
	}
	s, ok := v.(string)
	if !ok {
		return "", Malformed("property "+key, fmt.Errorf("want string, got %T", v))
	}
	if strings.TrimSpace(s) == "" {
		return "", Malformed("property "+key, ErrMissingProperty)
	}
	return s, nil
}

// OptionalString returns the string property key, or def when it is absent or empty.
func (p Properties) OptionalString(key, def string) (string, error) {
	if v, ok := p[key]; !ok || v == nil || v == "" {
		return def, nil
	}
	return p.String(key)
}

// Strings returns the list-of-strings property key. An absent key is an error;
// an empty list is not.
func (p Properties) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, Malformed("property "+key, ErrMissingProperty)
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, Malformed("property "+key, fmt.Errorf("item %d: want string, got %T", i, item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, Malformed("property "+key, fmt.Errorf("want list of strings, got %T", v))
	}
}
