// Copyright 2025 The Where Is Teemo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package teemo

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	defaultLogger   = newDefaultLogger(zapcore.InfoLevel)
	defaultLoggerMu sync.RWMutex
)

// Log returns the current default logger. Components derive their
// own with Log().Named("relay") etc.
func Log() *zap.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// ReplaceLog swaps the default logger; EnableDebugLog uses it when
// the CLI turns on debug logging.
func ReplaceLog(logger *zap.Logger) {
	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
}

// newDefaultLogger writes to stderr with the console encoder and
// the given minimum level.
func newDefaultLogger(level zapcore.LevelEnabler) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

// EnableDebugLog replaces the default logger with one that also
// emits debug-level entries.
func EnableDebugLog() {
	ReplaceLog(newDefaultLogger(zapcore.DebugLevel))
}
