// Package logx is a thin wrapper over the standard logger, kept terse and
// line-oriented in the teacher's style (see transformers/model.go's
// logModelLoadInfo in the teacher tree) rather than adopting a structured
// logging library — see SPEC_FULL.md §9a for why no third-party logger is
// used. Lines go to stderr only; they are not forwarded to /logs.
package logx

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Printf logs one line. Format strings follow "component: key=value ..." so
// lines stay greppable without a structured-logging dependency.
func Printf(format string, args ...any) {
	std.Printf(format, args...)
}

// Errorf logs an error-level line; same shape as Printf, kept distinct so
// call sites read intent at a glance.
func Errorf(format string, args ...any) {
	std.Printf("error: "+format, args...)
}
