// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

// StreamDecoder picks sensor responses out of a raw byte stream, such as a
// bus where another master does the polling. It keeps a sliding window of the
// last ResponseLength bytes and emits a Reading whenever that window is a valid
// frame. Bytes that never become part of a frame are counted as skipped.
type StreamDecoder struct {
	window  []byte
	skipped int
	queries int
}

// NewStreamDecoder creates a new stream decoder
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		window: make([]byte, 0, ResponseLength),
	}
}

// Reset discards the window and counters
func (d *StreamDecoder) Reset() {
	d.window = d.window[:0]
	d.skipped = 0
	d.queries = 0
}

// DecodeByte feeds one byte. It returns the frame and its reading when the
// byte completes a valid response, or nil, nil otherwise.
func (d *StreamDecoder) DecodeByte(b byte) ([]byte, *Reading) {
	if len(d.window) == ResponseLength {
		copy(d.window, d.window[1:])
		d.window = d.window[:ResponseLength-1]
		d.skipped++
	}
	d.window = append(d.window, b)

	if n := len(d.window); n >= QueryLength && string(d.window[n-QueryLength:]) == string(queryFrame) {
		d.queries++
	}

	if len(d.window) < ResponseLength {
		return nil, nil
	}

	reading, err := ValidateAndDecode(d.window)
	if err != nil {
		return nil, nil
	}

	frame := make([]byte, ResponseLength)
	copy(frame, d.window)
	d.window = d.window[:0]
	return frame, reading
}

// Skipped returns the number of bytes that were not part of a response
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

// Queries returns the number of query frames seen in the stream
func (d *StreamDecoder) Queries() int {
	return d.queries
}
