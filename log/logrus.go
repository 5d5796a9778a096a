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

package log

import "github.com/sirupsen/logrus"

// LogrusAdapter adapts *logrus.Logger to the Logger interface, for hosts
// that already standardized on logrus instead of zap.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter wraps an existing logrus logger.
func NewLogrusAdapter(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusAdapter{entry: logrus.NewEntry(l)}
}

func (a *LogrusAdapter) fields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Val
	}
	return out
}

func (a *LogrusAdapter) Debug(msg string, fields ...Field) {
	a.entry.WithFields(a.fields(fields)).Debug(msg)
}

func (a *LogrusAdapter) Info(msg string, fields ...Field) {
	a.entry.WithFields(a.fields(fields)).Info(msg)
}

func (a *LogrusAdapter) Warn(msg string, fields ...Field) {
	a.entry.WithFields(a.fields(fields)).Warn(msg)
}

func (a *LogrusAdapter) Error(msg string, fields ...Field) {
	a.entry.WithFields(a.fields(fields)).Error(msg)
}

func (a *LogrusAdapter) With(fields ...Field) Logger {
	return &LogrusAdapter{entry: a.entry.WithFields(a.fields(fields))}
}
