// Package rawbody captures HTTP request bodies byte-for-byte, before any
// form or JSON decoding has had a chance to touch them.
package rawbody

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

const chunkSize = 32 * 1024

// ErrTooLarge is returned when the body exceeds the configured limit.
var ErrTooLarge = errors.New("request body too large")

// TransportError reports that the body stream itself failed (client reset,
// broken chunked encoding, cancelled request context).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("read request body: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Read drains r exactly once and returns the bytes in arrival order.
//
// A positive limit caps the body size; limit <= 0 reads without a cap.
// On any failure no partial buffer is returned. ctx is checked between
// chunks so a cancelled request does not keep reading.
func Read(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	if limit > 0 {
		// One extra byte distinguishes "exactly limit" from "over limit".
		r = io.LimitReader(r, limit+1)
	}

	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Err: err}
		}

		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if limit > 0 && int64(buf.Len()) > limit {
				return nil, ErrTooLarge
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	return buf.Bytes(), nil
}
