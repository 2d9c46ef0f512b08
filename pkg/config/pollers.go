// Copyright 2025 UMH Systems GmbH
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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiwigrid/keta-sub001/pkg/models"
)

// PollerKind tells which entry point a poller definition is started with.
type PollerKind string

const (
	PollerKindDevice   PollerKind = "device"
	PollerKindTagValue PollerKind = "tagvalue"
)

// PollerDefinition describes one periodic poll of a device collection.
type PollerDefinition struct {
	Channel         string                 `yaml:"channel"`
	Kind            PollerKind             `yaml:"kind"`
	Params          models.QueryParameters `yaml:"params"`
	IntervalSeconds int                    `yaml:"intervalSeconds"`
}

// Interval returns the poll interval, or fallback when the definition does not set one.
func (d PollerDefinition) Interval(fallback time.Duration) time.Duration {
	if d.IntervalSeconds <= 0 {
		return fallback
	}
	return time.Duration(d.IntervalSeconds) * time.Second
}

type pollersFile struct {
	Pollers []PollerDefinition `yaml:"pollers"`
}

// LoadPollers reads poller definitions from a YAML file.
func LoadPollers(path string) ([]PollerDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pollers file %s: %w", path, err)
	}
	return ParsePollers(data)
}

// ParsePollers decodes and validates poller definitions. Unknown keys are rejected.
// An empty kind defaults to device.
func ParsePollers(data []byte) ([]PollerDefinition, error) {
	var file pollersFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse pollers: %w", err)
	}

	for i := range file.Pollers {
		def := &file.Pollers[i]
		if def.Channel == "" {
			return nil, fmt.Errorf("%w: poller %d has no channel", ErrInvalidConfig, i)
		}
		switch def.Kind {
		case "":
			def.Kind = PollerKindDevice
		case PollerKindDevice, PollerKindTagValue:
		default:
			return nil, fmt.Errorf("%w: poller %d (%s) has unknown kind %q", ErrInvalidConfig, i, def.Channel, def.Kind)
		}
		if def.IntervalSeconds < 0 {
			return nil, fmt.Errorf("%w: poller %d (%s) has negative interval", ErrInvalidConfig, i, def.Channel)
		}
	}

	return file.Pollers, nil
}
