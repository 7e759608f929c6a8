package models

import "errors"

var (
	// ErrNoHistory marks a room type with an empty occupancy series.
	ErrNoHistory = errors.New("no occupancy history")
	// ErrNoData marks a step that found nothing to work on.
	ErrNoData = errors.New("no data")
	// ErrRunInProgress is returned when another run holds the run lock.
	ErrRunInProgress = errors.New("a pricing run is already in progress")
	ErrNotFound      = errors.New("not found")
	// ErrInvalidTransition is returned for a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrModelFit wraps failures from a forecast model.
	ErrModelFit = errors.New("model fit failed")
)
