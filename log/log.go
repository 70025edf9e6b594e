// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the module-scoped logging facade used throughout
// cuprated. Every subsystem obtains its own Logger via NewModuleLogger
// so log lines can be filtered and leveled per module without touching
// call sites.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModuleName identifies the subsystem a Logger belongs to. It is attached
// to every record emitted through that Logger as the "module" field.
type ModuleName string

const (
	Common           ModuleName = "COMMON"
	StorageDatabase  ModuleName = "STORAGE"
	ConsensusContext ModuleName = "CONSENSUSCTX"
	Blockchain       ModuleName = "BLOCKCHAIN"
	TxPool           ModuleName = "TXPOOL"
	Dandelion        ModuleName = "DANDELION"
	CmdUtils         ModuleName = "CMDUTILS"
)

// Logger is the per-module logging handle. Every method accepts the log
// message followed by an even number of key/value pairs, in the style
// popularized by log15 and go-ethereum's log package.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs at the highest level and then terminates the process.
	// Storage and consensus actors use this for errors they cannot
	// recover from without risking silent corruption.
	Crit(msg string, ctx ...interface{})

	// NewWith returns a child Logger with the given key/value pairs
	// permanently attached to every record it emits.
	NewWith(ctx ...interface{}) Logger
}

var base *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "t"
	cfg.EncoderConfig.LevelKey = "lvl"
	cfg.EncoderConfig.MessageKey = "msg"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap construction failure this early means stderr itself is
		// unusable; there is nothing left to log to.
		panic(err)
	}
	base = l
}

type zapLogger struct {
	z *zap.SugaredLogger
}

// NewModuleLogger returns a Logger tagged with the given module name.
func NewModuleLogger(module ModuleName) Logger {
	return &zapLogger{z: base.Sugar().With("module", string(module))}
}

func (l *zapLogger) Trace(msg string, ctx ...interface{}) { l.z.Debugw(msg, ctx...) }
func (l *zapLogger) Debug(msg string, ctx ...interface{}) { l.z.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...interface{})  { l.z.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...interface{})  { l.z.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...interface{}) { l.z.Errorw(msg, ctx...) }

func (l *zapLogger) Crit(msg string, ctx ...interface{}) {
	l.z.Errorw(msg, ctx...)
	_ = base.Sync()
	fmt.Fprintf(os.Stderr, "fatal error: %s\n", msg)
	os.Exit(1)
}

func (l *zapLogger) NewWith(ctx ...interface{}) Logger {
	return &zapLogger{z: l.z.With(ctx...)}
}
