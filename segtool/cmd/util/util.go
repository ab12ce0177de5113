// Copyright 2018 The gVisor Authors.
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

// Package util groups a bunch of common helper functions used by commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/google/subcommands"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by scripts driving segtool, so they are kept apart from the debug
// log.
var ErrorLogger io.Writer = os.Stderr

// Errorf logs error to the debug log and to ErrorLogger. It returns
// subcommands.ExitFailure for convenience with subcommand.Execute() methods:
//
//	return Errorf("Danger! Danger!")
func Errorf(format string, args ...any) subcommands.ExitStatus {
	log.Warningf("FATAL ERROR: "+format, args...)
	writeError(format, args...)
	return subcommands.ExitFailure
}

// Fatalf logs the same way as Errorf() does, plus *exits* the process.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	// Return an error that is unlikely to be used by the application.
	os.Exit(128)
}

// jsonError is the error format written to ErrorLogger.
type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

func writeError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ErrorLogger == nil {
		return
	}
	b, err := json.Marshal(jsonError{Msg: msg, Level: "error", Time: time.Now()})
	if err != nil {
		fmt.Fprintf(ErrorLogger, "%s\n", msg)
		return
	}
	fmt.Fprintf(ErrorLogger, "%s\n", b)
}
