package k30

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the transaction step that failed.
type ErrorCode int

const (
	BusOpenFailed     ErrorCode = -96
	SlaveSelectFailed ErrorCode = -97
	WriteFailed       ErrorCode = -98
	ReadFailed        ErrorCode = -99
	ChecksumMismatch  ErrorCode = -100
)

// codeUnknown is returned by Code for errors that did not come from a transaction.
const codeUnknown ErrorCode = -1

func (c ErrorCode) Error() string {
	switch c {
	case BusOpenFailed:
		return "bus open failed"
	case SlaveSelectFailed:
		return "slave select failed"
	case WriteFailed:
		return "command write failed"
	case ReadFailed:
		return "response read failed"
	case ChecksumMismatch:
		return "response checksum mismatch"
	default:
		return fmt.Sprintf("transaction error %d", int(c))
	}
}

var ErrShortWrite = fmt.Errorf("short write")
var ErrShortRead = fmt.Errorf("short read")

// TransactionError is returned by every failed transaction step.
type TransactionError struct {
	Code ErrorCode
	// Status is the first byte of the response buffer, meaningful for ReadFailed and ChecksumMismatch.
	Status byte
	// Value is the unverified measurement carried by a ChecksumMismatch.
	Value uint16
	Err   error
}

func (e *TransactionError) Error() string {
	switch {
	case e.Code == ReadFailed && e.Err == nil:
		return fmt.Sprintf("k30: %s (status 0x%02x)", e.Code, e.Status)
	case e.Code == ReadFailed:
		return fmt.Sprintf("k30: %s (status 0x%02x): %v", e.Code, e.Status, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("k30: %s", e.Code)
	default:
		return fmt.Sprintf("k30: %s: %v", e.Code, e.Err)
	}
}

func (e *TransactionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// Code returns the transaction error code carried by err, 0 for nil and -1 for foreign errors.
func Code(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var terr *TransactionError
	if errors.As(err, &terr) {
		return terr.Code
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return codeUnknown
}
