package registry

import "errors"

// Sentinel errors for consistent error handling.
var (
	ErrNotStarted      = errors.New("registry not started")
	ErrAlreadyStarted  = errors.New("registry already started")
	ErrToolNotFound    = errors.New("tool not found")
	ErrExecutionFailed = errors.New("tool execution failed")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrIndexNotReady   = errors.New("search index not ready")
	ErrNoSession       = errors.New("no search session")
)

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeToolNotFound   = -32001
	ErrCodeToolExecFailed = -32002
)
