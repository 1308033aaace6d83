package history

import "errors"

var (
	// ErrFetchFailed wraps failures of the initial history fetch.
	ErrFetchFailed = errors.New("fetch history failed")
	// ErrSubscribeFailed wraps failures to start the push subscription.
	ErrSubscribeFailed = errors.New("subscribe history updates failed")
	// ErrCommandFailed wraps failures of mutation commands sent to the store.
	ErrCommandFailed = errors.New("history command failed")
	// ErrClearDeclined is returned by ClearAll when the confirmation is declined.
	ErrClearDeclined = errors.New("clear all declined")
	// ErrNoPendingClear is returned by ConfirmClearAll without a prior request.
	ErrNoPendingClear = errors.New("no pending clear request")
)
