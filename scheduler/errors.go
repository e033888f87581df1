package scheduler

import "errors"

var (
	ErrUnknownInstruction = errors.New("unknown scheduler instruction")
	ErrUnauthorized       = errors.New("signer is not the queue update authority")
	ErrQueueAuthority     = errors.New("queue authority is not registered on this queue")
	ErrQueueFull          = errors.New("task queue is full")
	ErrTaskIDInUse        = errors.New("task id already in use")
	ErrDescriptionTooLong = errors.New("task description too long")
	ErrDescriptorMismatch = errors.New("remaining accounts do not mirror the task descriptor")
	ErrTriggerNotReady    = errors.New("task trigger has not fired")
	ErrWrongQueue         = errors.New("task belongs to another queue")
	ErrRentRefundMismatch = errors.New("rent refund account does not match task")
	ErrAddressMismatch    = errors.New("account is not at the derived address")
	ErrInvalidTrigger     = errors.New("invalid trigger")
	ErrDequeueAuthority   = errors.New("signer may not dequeue tasks from this queue")
)
