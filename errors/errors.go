// Package errors wraps the standard library errors with formatted
// construction and message wrapping, so the rest of the module imports a
// single errors package.
package errors

import (
	stdErr "errors"
	"fmt"
	"runtime"
)

// Verbose makes Wrap append the caller's function, file and line to the
// message. Off by default.
var Verbose = false

func New(text string) error {
	return stdErr.New(text)
}

func Newf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func Is(err, target error) bool {
	return stdErr.Is(err, target)
}

func As(err error, target any) bool {
	return stdErr.As(err, target)
}

func Join(errs ...error) error {
	return stdErr.Join(errs...)
}

func Unwrap(err error) error {
	return stdErr.Unwrap(err)
}

// Wrap returns nil when err is nil, otherwise an error whose message is the
// formatted msg followed by err, which stays available to Is/As/Unwrap.
func Wrap(err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	if Verbose {
		if pc, file, line, ok := runtime.Caller(1); ok {
			msg += " function=%s file=%s line=%d"
			args = append(args, runtime.FuncForPC(pc).Name(), file, line)
		}
	}
	msg += ": %w"
	args = append(args, err)
	return fmt.Errorf(msg, args...)
}
