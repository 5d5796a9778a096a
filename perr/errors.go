// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package perr defines the typed error taxonomy exposed at the
// boundary of the runtime (spec §7).
package perr

import "fmt"

// Kind is one of the error kinds named in spec §7.
type Kind string

const (
	KindNotFound               Kind = "not-found"
	KindDuplicate              Kind = "duplicate"
	KindInvalidArgument        Kind = "invalid-argument"
	KindDependencyNotFound     Kind = "dependency-not-found"
	KindIncompatibleDependency Kind = "incompatible-dependency"
	KindCircularDependency     Kind = "circular-dependency"
	KindStateViolation         Kind = "state-violation"
	KindHookFailure            Kind = "hook-failure"
	KindTimeout                Kind = "timeout"
	KindTransportFailure       Kind = "transport-failure"
	KindShutdown               Kind = "shutdown"
)

// Error is the typed error every subsystem surfaces to its caller.
type Error struct {
	Kind     Kind
	Op       string
	PluginID string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.PluginID != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: plugin %q: %s: %v", e.Op, e.Kind, e.PluginID, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: plugin %q: %s", e.Op, e.Kind, e.PluginID, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches a target *Error with the same non-empty Kind, so
// errors.Is(err, &perr.Error{Kind: perr.KindNotFound}) finds any
// not-found error in err's chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op, pluginID, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, PluginID: pluginID, Message: msg, Cause: cause}
}

func NotFound(op, pluginID, msg string) *Error {
	return newErr(KindNotFound, op, pluginID, msg, nil)
}

func Duplicate(op, pluginID, msg string) *Error {
	return newErr(KindDuplicate, op, pluginID, msg, nil)
}

func InvalidArgument(op, msg string, cause error) *Error {
	return newErr(KindInvalidArgument, op, "", msg, cause)
}

func DependencyNotFound(op, pluginID, dependencyID string) *Error {
	return newErr(KindDependencyNotFound, op, pluginID,
		fmt.Sprintf("required dependency %q not present", dependencyID), nil)
}

func IncompatibleDependency(op, pluginID, dependencyID, constraint string) *Error {
	return newErr(KindIncompatibleDependency, op, pluginID,
		fmt.Sprintf("dependency %q does not satisfy constraint %q", dependencyID, constraint), nil)
}

// CircularDependencyError carries the cycle path per spec §4.3.
type CircularDependencyError struct {
	*Error
	Cycle []string
}

func CircularDependency(op string, cycle []string) *CircularDependencyError {
	return &CircularDependencyError{
		Error: newErr(KindCircularDependency, op, "", fmt.Sprintf("cycle: %v", cycle), nil),
		Cycle: cycle,
	}
}

// Unwrap exposes the embedded *Error itself rather than the promoted
// Cause (always nil for a circular-dependency error), so OfKind's
// Unwrap walk reaches it.
func (e *CircularDependencyError) Unwrap() error { return e.Error }

func StateViolation(op, pluginID, msg string) *Error {
	return newErr(KindStateViolation, op, pluginID, msg, nil)
}

func HookFailure(op, pluginID string, cause error) *Error {
	return newErr(KindHookFailure, op, pluginID, "hook failed", cause)
}

func Timeout(op, pluginID string) *Error {
	return newErr(KindTimeout, op, pluginID, "operation timed out", nil)
}

func TransportFailure(op, msg string, cause error) *Error {
	return newErr(KindTransportFailure, op, "", msg, cause)
}

func Shutdown(op string) *Error {
	return newErr(KindShutdown, op, "", "operation attempted after shutdown", nil)
}

// OfKind reports whether err is a *Error of the given kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
