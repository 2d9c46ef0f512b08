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

package constants

import "time"

const (
	// DefaultPollInterval is used when a poller is started without an interval.
	// There is deliberately no lower bound on user supplied intervals.
	DefaultPollInterval = 15 * time.Second

	// GetDevicesAction is the bus action that returns the device collection of a channel.
	GetDevicesAction = "getDevices"

	// ReplyCodeSuccess is the only reply code that counts as a successful fetch.
	ReplyCodeSuccess = 200

	// IdentityField is the entity field used to match devices across snapshots.
	IdentityField = "guid"

	// TagValuesField holds the tag-value sub-collection of a device entity.
	TagValuesField = "tagValues"
)
