package napigo

// Status is the result code returned by every capability surface call.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidArg
	StatusObjectExpected
	StatusStringExpected
	StatusNameExpected
	StatusFunctionExpected
	StatusNumberExpected
	StatusBooleanExpected
	StatusArrayExpected
	StatusGenericFailure
	StatusPendingException
	StatusCancelled
	StatusEscapeCalledTwice
	StatusHandleScopeMismatch
	StatusCallbackScopeMismatch
	StatusQueueFull
	StatusClosing
	StatusBigintExpected
	StatusDateExpected
	StatusArrayBufferExpected
	StatusDetachableArrayBufferExpected
	StatusWouldDeadlock
	StatusNoExternalBuffersAllowed
	StatusCannotRunJS
)

var statusNames = [...]string{
	StatusOK:                            "ok",
	StatusInvalidArg:                    "invalid_arg",
	StatusObjectExpected:                "object_expected",
	StatusStringExpected:                "string_expected",
	StatusNameExpected:                  "name_expected",
	StatusFunctionExpected:              "function_expected",
	StatusNumberExpected:                "number_expected",
	StatusBooleanExpected:               "boolean_expected",
	StatusArrayExpected:                 "array_expected",
	StatusGenericFailure:                "generic_failure",
	StatusPendingException:              "pending_exception",
	StatusCancelled:                     "cancelled",
	StatusEscapeCalledTwice:             "escape_called_twice",
	StatusHandleScopeMismatch:           "handle_scope_mismatch",
	StatusCallbackScopeMismatch:         "callback_scope_mismatch",
	StatusQueueFull:                     "queue_full",
	StatusClosing:                       "closing",
	StatusBigintExpected:                "bigint_expected",
	StatusDateExpected:                  "date_expected",
	StatusArrayBufferExpected:           "arraybuffer_expected",
	StatusDetachableArrayBufferExpected: "detachable_arraybuffer_expected",
	StatusWouldDeadlock:                 "would_deadlock",
	StatusNoExternalBuffersAllowed:      "no_external_buffers_allowed",
	StatusCannotRunJS:                   "cannot_run_js",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown_status"
	}
	return statusNames[s]
}

// OK reports whether the call succeeded.
func (s Status) OK() bool { return s == StatusOK }

// ErrorInfo is the extended error record retrieved via GetLastErrorInfo
// after a non-OK status.
type ErrorInfo struct {
	Message string
	Status  Status
}
