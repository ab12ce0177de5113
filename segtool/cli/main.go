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

// Package cli is the main entrypoint for segtool.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip/sniffer"
	"github.com/dumbo-net/dumbo/segtool/cmd"
	"github.com/dumbo-net/dumbo/segtool/cmd/util"
	"github.com/dumbo-net/dumbo/segtool/config"
	"github.com/google/subcommands"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	atomic.StoreUint32(&sniffer.LogPackets, boolToUint32(conf.LogPackets))

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		// O_APPEND so that the same pattern can be shared by several
		// invocations without them clobbering each other.
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFileOpts{command: subcommand, start: time.Now()})
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
	}
	log.SetTarget(newEmitter(conf.LogFormat, logFile))

	const delimString = `**************** segtool ****************`
	log.Debugf(delimString)
	log.Debugf("%s, %s, PID %d", runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Debugf("Args: %v", os.Args)
	if log.IsLogging(log.Debug) {
		conf.Log()
	}
	log.Debugf(delimString)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(ctx, conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Debugf("Command %q exited with status: %v", subcommand, subcmdCode)
	}
	stop()
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// segtool.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const segmentGroup = "segments"
	cb(new(cmd.Encode), segmentGroup)
	cb(new(cmd.Decode), segmentGroup)
	cb(new(cmd.Checksum), segmentGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Writer: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", format)
	panic("unreachable")
}

// logFileOpts substitutes the variables available in --log.
type logFileOpts struct {
	command string
	start   time.Time
}

// Build implements log.FileOpts.Build.
func (o logFileOpts) Build(logPattern string) string {
	return strings.NewReplacer(
		"%TIMESTAMP%", o.start.Format("20060102-150405.000000"),
		"%COMMAND%", o.command,
	).Replace(logPattern)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
