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

import "github.com/rs/zerolog"

// ZerologAdapter adapts zerolog.Logger to the Logger interface. Used by
// cmd/pluginctl for CLI-local output, kept distinct from the zap/logrus
// adapters the core components use.
type ZerologAdapter struct {
	l zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog logger.
func NewZerologAdapter(l zerolog.Logger) Logger {
	return &ZerologAdapter{l: l}
}

func (z *ZerologAdapter) event(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Val)
	}
	e.Msg(msg)
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) { z.event(z.l.Debug(), msg, fields) }
func (z *ZerologAdapter) Info(msg string, fields ...Field)  { z.event(z.l.Info(), msg, fields) }
func (z *ZerologAdapter) Warn(msg string, fields ...Field)  { z.event(z.l.Warn(), msg, fields) }
func (z *ZerologAdapter) Error(msg string, fields ...Field) { z.event(z.l.Error(), msg, fields) }

func (z *ZerologAdapter) With(fields ...Field) Logger {
	ctx := z.l.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Val)
	}
	return &ZerologAdapter{l: ctx.Logger()}
}
