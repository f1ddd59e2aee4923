package service

import (
	"errors"
	"fmt"

	"github.com/ajgcsol/videopipeline/models"
)

// ErrSessionRunning is returned when a close or reset is requested while the
// pipeline is still advancing.
var ErrSessionRunning = errors.New("session is running")

// ErrPollInProgress is returned when a second poll loop is requested for the
// same session.
var ErrPollInProgress = errors.New("poll already in progress")

// ErrPollTimeout is returned when the transcoder never reaches a terminal
// status before the polling ceiling.
var ErrPollTimeout = errors.New("polling timed out before terminal status")

// ErrPartsNotContiguous is returned when a multipart finalize is attempted
// with a gapped or duplicated part list.
var ErrPartsNotContiguous = errors.New("uploaded parts are not contiguous")

// PipelineError is a step-aware error; the failing step halts the pipeline.
type PipelineError struct {
	Step    models.StepKey
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTransportError wraps upload destination, part, and finalize failures.
func NewTransportError(message string, err error) *PipelineError {
	return &PipelineError{Step: models.StepUpload, Message: message, Err: err}
}

// NewRemoteProcessingError wraps a terminal errored status from polling.
func NewRemoteProcessingError(message string, err error) *PipelineError {
	return &PipelineError{Step: models.StepProcessing, Message: message, Err: err}
}

// NewPersistenceError wraps database write failures.
func NewPersistenceError(message string, err error) *PipelineError {
	return &PipelineError{Step: models.StepDatabase, Message: message, Err: err}
}
