package simulator

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Recorder receives the output of a run. Failing to record never stops
// the simulation.
type Recorder interface {
	Name() string
	RecordBlock(ctx context.Context, event BlockEvent) error
	RecordResult(ctx context.Context, result *Result) error
	Close() error
}

// MultiRecorder fans out to several recorders and joins their errors.
type MultiRecorder []Recorder

// Name implements Recorder.
func (m MultiRecorder) Name() string { return "multi" }

// RecordBlock implements Recorder.
func (m MultiRecorder) RecordBlock(ctx context.Context, event BlockEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordBlock(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// RecordResult implements Recorder.
func (m MultiRecorder) RecordResult(ctx context.Context, result *Result) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordResult(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// Close implements Recorder.
func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// Discard records nothing.
type Discard struct{}

// Name implements Recorder.
func (Discard) Name() string { return "discard" }

// RecordBlock implements Recorder.
func (Discard) RecordBlock(context.Context, BlockEvent) error { return nil }

// RecordResult implements Recorder.
func (Discard) RecordResult(context.Context, *Result) error { return nil }

// Close implements Recorder.
func (Discard) Close() error { return nil }
