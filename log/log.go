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

// Package log provides a small structured-logging capability that the
// rest of the runtime depends on instead of a concrete logging library.
package log

import "time"

// Logger is the capability every internal package logs through. It is
// satisfied by the zap and logrus adapters below; hosts embedding the
// runtime may supply their own.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a derived logger that always includes fields.
	With(fields ...Field) Logger
}

// Field is a single structured logging attribute.
type Field struct {
	Key string
	Val any
}

func StringField(key, val string) Field { return Field{Key: key, Val: val} }

func IntField(key string, val int) Field { return Field{Key: key, Val: val} }

func Int64Field(key string, val int64) Field { return Field{Key: key, Val: val} }

func BoolField(key string, val bool) Field { return Field{Key: key, Val: val} }

func DurationField(key string, val time.Duration) Field { return Field{Key: key, Val: val} }

func ErrorField(err error) Field { return Field{Key: "error", Val: err} }

// Nop returns a Logger that discards everything, for tests and
// callers that don't want to wire a real sink.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)  {}
func (nopLogger) Info(string, ...Field)   {}
func (nopLogger) Warn(string, ...Field)   {}
func (nopLogger) Error(string, ...Field)  {}
func (n nopLogger) With(...Field) Logger  { return n }
