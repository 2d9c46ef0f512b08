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

package poller

import (
	"time"

	"github.com/juju/clock"

	"github.com/kiwigrid/keta-sub001/pkg/bus"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

type Config struct {
	Requester bus.Requester
	// Registry records every started poller. A fresh one is created when nil.
	Registry *Registry
	// Clock drives the poll interval. Defaults to the wall clock.
	Clock clock.Clock
}

// Service is the entry point for starting and stopping device pollers.
type Service struct {
	poller   *DevicePoller
	registry *Registry
}

func NewService(cfg Config) *Service {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		poller:   NewDevicePoller(cfg.Requester, cfg.Clock),
		registry: registry,
	}
}

// StartDevicePolling starts reporting device changes on channel and records the poller.
func (s *Service) StartDevicePolling(channel string, params models.QueryParameters, onChangeEvent Consumer, interval time.Duration) *Handle {
	handle := s.poller.Start(channel, params, onChangeEvent, interval)
	s.registry.Add(handle)
	return handle
}

// StartTagValuePolling starts reporting tag values on channel and records the poller.
func (s *Service) StartTagValuePolling(channel string, params models.QueryParameters, onTagValue TagValueConsumer, interval time.Duration) *Handle {
	handle := s.poller.StartTagValues(channel, params, onTagValue, interval)
	s.registry.Add(handle)
	return handle
}

// StopAllPolling stops every poller started through the service.
func (s *Service) StopAllPolling() {
	s.registry.StopAndRemoveAll()
}

func (s *Service) Registry() *Registry {
	return s.registry
}
