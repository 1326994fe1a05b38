// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

import "errors"

// Decode failure kinds. A *DecodeError always wraps exactly one of these.
var (
	ErrIncompleteFrame  = errors.New("incomplete frame")
	ErrUnexpectedHeader = errors.New("unexpected header")
	ErrCRCMismatch      = errors.New("CRC mismatch")
)

// DecodeError describes why a response frame was rejected
type DecodeError struct {
	Kind    error
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return e.Message
}

// Unwrap exposes the failure kind to errors.Is
func (e *DecodeError) Unwrap() error {
	return e.Kind
}
