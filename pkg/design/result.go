// Package design generates the four candidate antigen designs for one
// (lineage, year) alignment: Consensus, Medoid, Ancestral and COBRA.
//
// Generators that depend on external tools are written as an ordered list of
// attempts closed by an infallible final step, so every generator always
// yields a design and records why it left its primary path.
package design

import (
	"context"
	"errors"
	"fmt"

	"github.com/yumyai/hadesign/pkg/model"
)

// ErrSkip lets an attempt hand over without recording a reason of its own,
// e.g. when the state it builds on was never produced.
var ErrSkip = errors.New("attempt skipped")

type fallbackError struct {
	reason model.FallbackReason
	err    error
}

func (e *fallbackError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *fallbackError) Unwrap() error {
	return e.err
}

// Fallback marks err as a failure that moves the chain to its next attempt,
// recording reason on the resulting design.
func Fallback(reason model.FallbackReason, err error) error {
	return &fallbackError{reason: reason, err: err}
}

// Attempt is one step of a generator. Reason is recorded when Run fails with
// a plain error.
type Attempt struct {
	Name   string
	Reason model.FallbackReason
	Run    func(ctx context.Context) (*model.Design, error)
}

// Final closes a chain and cannot fail.
type Final struct {
	Name string
	Run  func() *model.Design
}

// Result is the outcome of a chain: the design, which step produced it and
// the failures of the steps before it.
type Result struct {
	Design   *model.Design
	Reason   model.FallbackReason
	Step     string
	Failures []error
}

// Fell reports whether the design came from a fallback path.
func (r Result) Fell() bool {
	return r.Reason != model.NoFallback
}

// Resolve runs attempts in order and returns the first design produced,
// falling through to final when all attempts fail. The recorded reason is the
// first one encountered, i.e. why the primary path was left.
func Resolve(ctx context.Context, tag model.Tag, attempts []Attempt, final Final) Result {
	var res Result

	note := func(r model.FallbackReason) {
		if res.Reason == model.NoFallback {
			res.Reason = r
		}
	}

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, err)
			break
		}

		d, err := a.Run(ctx)
		if err == nil && d != nil {
			res.Design = d
			res.Step = a.Name
			break
		}
		if err == nil {
			err = fmt.Errorf("%s produced no design", a.Name)
		}

		var fe *fallbackError
		switch {
		case errors.Is(err, ErrSkip):
		case errors.As(err, &fe):
			note(fe.reason)
		default:
			note(a.Reason)
		}
		res.Failures = append(res.Failures, fmt.Errorf("%s: %w", a.Name, err))
	}

	if res.Design == nil {
		res.Design = final.Run()
		res.Step = final.Name
	}

	res.Design.Tag = tag
	res.Design.Fallback = res.Reason
	return res
}
