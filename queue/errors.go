package queue

import (
	"errors"
	"fmt"
)

var (
	ErrExecutionExpired = errors.New("Execution expired")
	ErrRetryExpired     = errors.New("retry timeout expired")
	ErrQueueDestroyed   = errors.New("queue destroyed")
	ErrDuplicateID      = errors.New("transaction id already outstanding")
)

// TransactionError reports a transaction that ended without a usable reply.
type TransactionError struct {
	Kind error
	ID   int
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%v %d", e.Kind, e.ID)
}

func (e *TransactionError) Unwrap() error {
	return e.Kind
}
