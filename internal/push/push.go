// Package push defines the delivery contract with the push gateway and the
// Firebase Cloud Messaging implementation of it.
package push

import (
	"context"
	"errors"
)

// MaxBatchSize is the largest token list a single multicast call accepts.
const MaxBatchSize = 500

// Outcome classifies the result of delivering to one device token.
type Outcome int

const (
	Delivered Outcome = iota
	TransientFailure
	PermanentInvalidToken
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentInvalidToken:
		return "invalid_token"
	default:
		return "unknown"
	}
}

// Gateway error codes that mean the token will never work again.
var (
	ErrUnregistered = errors.New("unregistered")
	ErrInvalidToken = errors.New("invalid-token")
)

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Result struct {
	Outcome   Outcome
	MessageID string
	Err       error
}

// SingleSender delivers one message to one token.
type SingleSender interface {
	Send(ctx context.Context, token string, msg Message) Result
}

// BatchSender delivers one message to many tokens in a single call.
// On success the returned results are index-aligned with tokens. A non-nil
// error means the call failed as a whole and no per-token outcome is known.
type BatchSender interface {
	SendBatch(ctx context.Context, tokens []string, msg Message) ([]Result, error)
}

// ResultFromError builds a Result from a gateway error using Classify.
func ResultFromError(err error) Result {
	return Result{Outcome: Classify(err), Err: err}
}

// Classify maps a gateway error onto an Outcome. Only errors that prove the
// token is dead are permanent; everything else may succeed later.
func Classify(err error) Outcome {
	if err == nil {
		return Delivered
	}
	if errors.Is(err, ErrUnregistered) || errors.Is(err, ErrInvalidToken) {
		return PermanentInvalidToken
	}
	if isFCMTokenError(err) {
		return PermanentInvalidToken
	}
	return TransientFailure
}
