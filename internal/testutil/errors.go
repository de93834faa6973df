// Package testutil provides testing utilities for cadence.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockNetwork indicates a mock network error occurred (used in tests).
	ErrMockNetwork = errors.New("network error")

	// ErrMockPublish indicates a mock publish was rejected (used in tests).
	ErrMockPublish = errors.New("publish rejected")

	// ErrMockSubscribe indicates a mock subscription was rejected (used in tests).
	ErrMockSubscribe = errors.New("subscribe rejected")

	// ErrMockOutput indicates a mock actuator rejected an output (used in tests).
	ErrMockOutput = errors.New("output rejected")
)
