// Package failure classifies processing errors.
//
// Processors return plain errors for terminal failures. Wrapping an error in a
// Failure lets the processor itself decide whether the attempt should be retried,
// whether the entry is a duplicate of content already processed, and where the
// entry should be routed instead of the configured failure directory.
package failure

import (
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Failure is a classified processing error.
type Failure struct {
	err         error
	recoverable bool
	duplicate   bool
	destination string
}

type Option func(*Failure)

// Retry marks the failure as recoverable.
func Retry() Option {
	return func(f *Failure) { f.recoverable = true }
}

// AsDuplicate marks the entry as a repeat of content already processed.
func AsDuplicate() Option {
	return func(f *Failure) { f.duplicate = true }
}

// To overrides the directory the failed entry is moved to.
func To(dir string) Option {
	return func(f *Failure) { f.destination = dir }
}

// New classifies err. A stack trace is attached unless err already carries one.
// Options applied to an existing Failure are merged into a copy of it.
func New(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if existing, ok := err.(*Failure); ok {
		cp := *existing
		f = &cp
	} else {
		f = &Failure{err: withStack(err)}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Errorf formats a terminal failure with a stack trace.
func Errorf(format string, args ...interface{}) error {
	return &Failure{err: pkgerrors.Errorf(format, args...)}
}

func Recoverable(err error) error {
	return New(err, Retry())
}

func Duplicate(err error) error {
	return New(err, AsDuplicate())
}

func Redirect(err error, dir string) error {
	return New(err, To(dir))
}

func (f *Failure) Error() string { return f.err.Error() }

func (f *Failure) Unwrap() error { return f.err }

func (f *Failure) Recoverable() bool { return f.recoverable }

func (f *Failure) Duplicate() bool { return f.duplicate }

func (f *Failure) Destination() string { return f.destination }

// Format prints the stack trace of the underlying error with %+v.
func (f *Failure) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%+v", f.err)
			return
		}
		io.WriteString(s, f.Error())
	case 's':
		io.WriteString(s, f.Error())
	case 'q':
		fmt.Fprintf(s, "%q", f.Error())
	}
}

func IsRecoverable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.recoverable
}

func IsDuplicate(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.duplicate
}

// Destination returns the preferred failure directory carried by err, if any.
func Destination(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.destination
	}
	return ""
}

// ResponseError is returned by processors whose remote call answered with an
// unexpected status. The body is kept verbatim for the error report.
type ResponseError struct {
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: unexpected response %s", e.URL, e.Status)
}

// ResponseBody returns the raw body of a ResponseError in err's chain.
func ResponseBody(err error) ([]byte, bool) {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Body, true
	}
	return nil, false
}

// Trace renders err, each distinct cause in its chain and the innermost stack
// trace, one item per line.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	last := err.Error()
	b.WriteString(last)
	b.WriteByte('\n')
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		if msg := e.Error(); msg != last {
			fmt.Fprintf(&b, "caused by: %s\n", msg)
			last = msg
		}
	}

	var deepest stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest != nil {
		fmt.Fprintf(&b, "%+v\n", deepest.StackTrace())
	}
	return b.String()
}

func withStack(err error) error {
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}
