package reconcile

import (
	"errors"
	"fmt"
)

// Kind classifies a reconciliation failure.
type Kind string

const (
	// KindMalformed: the request or its properties are invalid.
	KindMalformed Kind = "malformed"
	// KindCreate: creating the identity provider failed.
	KindCreate Kind = "create"
	// KindWrite: writing to storage failed.
	KindWrite Kind = "write"
	// KindDelivery: the result could not be delivered to the callback address.
	KindDelivery Kind = "delivery"
	// KindInternal: anything else, including recovered panics.
	KindInternal Kind = "internal"
)

var (
	ErrMissingProperty     = errors.New("missing required property")
	ErrUnknownResourceType = errors.New("unknown resource type")
	ErrUnknownRequestType  = errors.New("unknown request type")
)

// Error is a classified reconciliation error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the failing operation. A nil err stays nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Malformed reports an invalid request.
func Malformed(op string, err error) error { return E(KindMalformed, op, err) }

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}
