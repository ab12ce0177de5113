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

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML or YAML (.yaml, .yml) configuration file. Flags given on the command line override its values.")

	// Debugging flags.
	flagSet.String("log", "", "file path where logs are written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default), json, or json-k8s.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Bool("log-packets", false, "enable segment logging.")

	// Pseudo-header addresses.
	flagSet.String("src", "", "IPv4 source address used for checksums. Must be set along with --dst.")
	flagSet.String("dst", "", "IPv4 destination address used for checksums. Must be set along with --src.")

	// Segment building.
	flagSet.Uint("buffer-size", 1500, "size of the buffer segments are written to.")
	flagSet.Uint("window-size", 65535, "advertised receive window.")
	flagSet.Uint("mss", 0, "value of the MSS option; 0 omits the option.")
	flagSet.Uint("mss-remaining", 1460, "upper bound on the length of options and payload.")
}

// NewFromFlags creates a new Config with values coming from command line flags
// and, when --config is set, from the configuration file it names.
//
// Values are applied in order: flag defaults, then the configuration file,
// then flags explicitly set on the command line.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	forEachField(obj, func(name string, field reflect.Value) {
		setFromFlag(flagSet, name, field)
	})

	if conf.ConfigFile != "" {
		if err := conf.loadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
		set := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
		forEachField(obj, func(name string, field reflect.Value) {
			if set[name] {
				setFromFlag(flagSet, name, field)
			}
		})
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func setFromFlag(flagSet *flag.FlagSet, name string, field reflect.Value) {
	fl := flagSet.Lookup(name)
	if fl == nil {
		panic(fmt.Sprintf("Flag %q not found", name))
	}
	field.Set(reflect.ValueOf(fl.Value.(flag.Getter).Get()))
}

// loadFile decodes the configuration file at path into c. Keys absent from
// the file leave c untouched; unknown keys are an error.
func (c *Config) loadFile(path string) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return c.loadYAML(path)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys in config file %q: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and sets nothing.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("unknown keys in config file %q: %w", path, err)
		}
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config. Flags
// holding their default value are omitted.
func (c *Config) ToFlags() []string {
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	var rv []string
	forEachField(reflect.ValueOf(c).Elem(), func(name string, field reflect.Value) {
		val := getVal(field)
		if fl := flagSet.Lookup(name); fl != nil && val == fl.DefValue {
			return
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", name, val))
	})
	return rv
}
