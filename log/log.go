// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package log is a minimal log15-style contextual logger, kept in the
// same shape the rest of the module expects: New("key", val, ...)
// returns a Logger that prefixes every line with its bound context.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

var lvlNames = [...]string{"CRIT", "ERROR", "WARN", "INFO", "DEBUG"}

func (l Lvl) String() string { return lvlNames[l] }

type Logger interface {
	New(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
}

var (
	mu        sync.Mutex
	out       io.Writer = colorable.NewColorableStdout()
	level               = LvlInfo
	useColors           = isatty.IsTerminal(os.Stdout.Fd())
)

// SetLevel bounds which levels are actually written; it exists so a
// CLI flag can raise or lower verbosity without threading a logger
// handle through every constructor.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func New(ctx ...interface{}) Logger {
	return &logger{ctx: ctx}
}

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > level {
		return
	}
	var caller string
	if lvl <= LvlWarn {
		if cs := stack.Caller(2); cs != nil {
			caller = fmt.Sprintf(" %+v", cs)
		}
	}
	fmt.Fprintf(out, "%s [%-5s] %s%s", time.Now().Format("01-02|15:04:05.000"), lvl, msg, caller)
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(out)
}

func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx); os.Exit(1) }

var root = New()

func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

// SetOutput lets tests capture log output instead of writing to stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	_ = useColors
}
