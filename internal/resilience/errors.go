package resilience

import (
	"errors"
	"io"
	"net"
	"net/textproto"
	"syscall"
)

// Fault is the retry class of a raster fetch failure.
type Fault int

const (
	// Permanent failures go back to the caller untouched.
	Permanent Fault = iota
	// Refused is a throttling or busy reply: an HTTP status from
	// TransientStatus or an FTP 4xx reply.
	Refused
	// Network is a timeout or a dropped, reset or refused connection.
	Network
	// Truncated is a transfer that ended before the raster did.
	Truncated
)

func (f Fault) String() string {
	switch f {
	case Refused:
		return "refused"
	case Network:
		return "network"
	case Truncated:
		return "truncated"
	}
	return "permanent"
}

// TransientError marks a fetch failure the provider already judged safe to
// retry. Code is the HTTP status or FTP reply code, zero for transport faults.
type TransientError struct {
	Err  error
	Code int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err with the reply code behind it, if any.
func NewTransientError(err error, code int) *TransientError {
	return &TransientError{Err: err, Code: code}
}

// Classify sorts err by walking its chain. An open breaker is permanent so
// callers stop instead of retrying into it.
func Classify(err error) Fault {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return Permanent
	}
	var te *TransientError
	if errors.As(err, &te) {
		if te.Code > 0 {
			return Refused
		}
		if f := transport(te.Err); f != Permanent {
			return f
		}
		return Network
	}
	return transport(err)
}

func transport(err error) Fault {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Truncated
	}
	var reply *textproto.Error
	if errors.As(err, &reply) {
		if TransientReply(reply.Code) {
			return Refused
		}
		return Permanent
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Network
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return Network
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, errno) {
			return Network
		}
	}
	return Permanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return Classify(err) != Permanent }

// TransientStatus reports whether an HTTP status is a retryable server or
// throttling response.
func TransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// TransientReply reports whether an FTP reply is a transient negative
// completion (4yz), such as 421 or 450.
func TransientReply(code int) bool { return code >= 400 && code < 500 }
