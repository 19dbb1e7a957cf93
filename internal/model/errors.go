package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the resolution engine, the orchestrator and the
// HTTP boundary. Callers wrap these with %w and test with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrExternalTool       = errors.New("external tool failure")
	ErrTimeout            = errors.New("timeout")
	ErrUnknownEnvironment = errors.New("unknown environment")
	ErrDeployInProgress   = errors.New("deployment already in progress")

	ErrEnvironmentNotFound = fmt.Errorf("environment %w", ErrNotFound)
	ErrStackNotFound       = fmt.Errorf("stack %w", ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("service category %w", ErrNotFound)
)
