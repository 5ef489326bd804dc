package sandbox

// ErrorKind classifies execution failures. Every failed result carries
// exactly one kind; successful results carry none.
type ErrorKind string

const (
	// ErrKindValidation indicates schema or argument validation failed.
	ErrKindValidation ErrorKind = "validation_error"
	// ErrKindSecurity indicates the deny-list scan rejected the script.
	ErrKindSecurity ErrorKind = "security_violation"
	// ErrKindInterpreterNotFound indicates the language interpreter binary is missing.
	ErrKindInterpreterNotFound ErrorKind = "interpreter_not_found"
	// ErrKindTimeout indicates the wall-clock execution bound elapsed.
	ErrKindTimeout ErrorKind = "execution_timeout"
	// ErrKindRuntime indicates the script exited non-zero or raised.
	ErrKindRuntime ErrorKind = "runtime_failure"
	// ErrKindSourceFetch indicates a git or remote source could not be resolved.
	ErrKindSourceFetch ErrorKind = "source_fetch_error"
	// ErrKindInternal indicates an unexpected host-side failure.
	ErrKindInternal ErrorKind = "internal_error"
)
