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

import "go.uber.org/zap"

// ZapAdapter adapts *zap.Logger to the Logger interface.
type ZapAdapter struct {
	l *zap.Logger
}

// NewZapAdapter wraps an existing zap logger.
func NewZapAdapter(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapAdapter{l: l}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Val))
	}
	return out
}

func (z *ZapAdapter) Debug(msg string, fields ...Field) { z.l.Debug(msg, toZapFields(fields)...) }
func (z *ZapAdapter) Info(msg string, fields ...Field)  { z.l.Info(msg, toZapFields(fields)...) }
func (z *ZapAdapter) Warn(msg string, fields ...Field)  { z.l.Warn(msg, toZapFields(fields)...) }
func (z *ZapAdapter) Error(msg string, fields ...Field) { z.l.Error(msg, toZapFields(fields)...) }

func (z *ZapAdapter) With(fields ...Field) Logger {
	return &ZapAdapter{l: z.l.With(toZapFields(fields)...)}
}
