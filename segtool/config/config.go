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

// Package config provides basic infrastructure to set configuration settings
// for segtool. Each setting can be changed from the command line or from a
// TOML or YAML configuration file, and command line flags take precedence.
package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/dumbo-net/dumbo/pkg/log"
	"github.com/dumbo-net/dumbo/pkg/tcpip"
	"github.com/dumbo-net/dumbo/pkg/tcpip/header"
)

// Config holds configuration that is not part of the segments themselves.
//
// Fields tagged with `flag` are populated from the flag of that name. Fields
// tagged with `toml` and `yaml` may also be set from the configuration file.
type Config struct {
	// ConfigFile is the path of the configuration file, TOML unless it ends in
	// .yaml or .yml. Empty means flags only.
	ConfigFile string `flag:"config" toml:"-" yaml:"-"`

	// LogFilename is the file path where logs are written. The following
	// variables are replaced: %TIMESTAMP%, %COMMAND%. Empty means stderr.
	LogFilename string `flag:"log" toml:"log" yaml:"log"`

	// LogFormat is the log format: text, json, or json-k8s.
	LogFormat string `flag:"log-format" toml:"log_format" yaml:"log_format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug" yaml:"debug"`

	// LogPackets indicates that every segment handled should be logged.
	LogPackets bool `flag:"log-packets" toml:"log_packets" yaml:"log_packets"`

	// SrcAddr is the IPv4 source address of the segments, used for the
	// checksum pseudo-header.
	SrcAddr string `flag:"src" toml:"src_addr" yaml:"src_addr"`

	// DstAddr is the IPv4 destination address of the segments.
	DstAddr string `flag:"dst" toml:"dst_addr" yaml:"dst_addr"`

	// Segment holds the defaults used when building segments.
	Segment Segment `toml:"segment" yaml:"segment"`
}

// Segment holds the settings used when building segments.
type Segment struct {
	// BufferSize is the size of the buffer segments are written to. It
	// bounds the segment length.
	BufferSize uint `flag:"buffer-size" toml:"buffer_size" yaml:"buffer_size"`

	// WindowSize is the advertised receive window.
	WindowSize uint `flag:"window-size" toml:"window_size" yaml:"window_size"`

	// MSS is the value of the MSS option. Zero means no option.
	MSS uint `flag:"mss" toml:"mss" yaml:"mss"`

	// MSSRemaining bounds the length of options and payload.
	MSSRemaining uint `flag:"mss-remaining" toml:"mss_remaining" yaml:"mss_remaining"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", c.LogFormat)
	}
	if (c.SrcAddr == "") != (c.DstAddr == "") {
		return fmt.Errorf("source and destination addresses must be set together, got src=%q dst=%q", c.SrcAddr, c.DstAddr)
	}
	if _, err := c.Addresses(); err != nil {
		return err
	}
	if c.Segment.BufferSize < header.TCPMinimumSize || c.Segment.BufferSize > math.MaxUint16 {
		return fmt.Errorf("buffer size %d out of range [%d, %d]", c.Segment.BufferSize, header.TCPMinimumSize, math.MaxUint16)
	}
	for name, v := range map[string]uint{
		"window size":   c.Segment.WindowSize,
		"MSS":           c.Segment.MSS,
		"MSS remaining": c.Segment.MSSRemaining,
	} {
		if v > math.MaxUint16 {
			return fmt.Errorf("%s %d does not fit in 16 bits", name, v)
		}
	}
	return nil
}

// Addresses returns the address pair used to compute and verify checksums,
// or nil if no addresses were configured.
func (c *Config) Addresses() (*header.AddressPair, error) {
	if c.SrcAddr == "" && c.DstAddr == "" {
		return nil, nil
	}
	src, err := tcpip.ParseAddress(c.SrcAddr)
	if err != nil {
		return nil, fmt.Errorf("source address: %w", err)
	}
	dst, err := tcpip.ParseAddress(c.DstAddr)
	if err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}
	return &header.AddressPair{Src: src, Dst: dst}, nil
}

// Fields returns the segment fields described by the configuration. Flags
// and payload are left to the caller.
func (c *Config) Fields() header.TCPFields {
	return header.TCPFields{
		WindowSize:   uint16(c.Segment.WindowSize),
		MSS:          uint16(c.Segment.MSS),
		MSSRemaining: uint16(c.Segment.MSSRemaining),
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	forEachField(reflect.ValueOf(c).Elem(), func(name string, v reflect.Value) {
		log.Infof("  %s: %s", name, getVal(v))
	})
}

// forEachField calls fn for every flag-tagged field of the struct v, nested
// structs included.
func forEachField(v reflect.Value, fn func(name string, field reflect.Value)) {
	st := v.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if name, ok := f.Tag.Lookup("flag"); ok {
			fn(name, v.Field(i))
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			forEachField(v.Field(i), fn)
		}
	}
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
