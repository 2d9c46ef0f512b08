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

package logger_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/kiwigrid/keta-sub001/pkg/logger"
)

var _ = Describe("Logger", func() {
	DescribeTable("ParseLevel",
		func(level logger.LogLevel, expected zapcore.Level) {
			Expect(logger.ParseLevel(level)).To(Equal(expected))
		},
		Entry("debug", logger.DebugLevel, zapcore.DebugLevel),
		Entry("lower case warn", logger.LogLevel("warn"), zapcore.WarnLevel),
		Entry("error", logger.ErrorLevel, zapcore.ErrorLevel),
		Entry("production", logger.ProductionLevel, zapcore.InfoLevel),
		Entry("unknown", logger.LogLevel("VERBOSE"), zapcore.InfoLevel),
	)

	It("creates loggers honoring the level", func() {
		log := logger.New("ERROR", logger.FormatJSON)
		Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeFalse())
		Expect(log.Core().Enabled(zapcore.ErrorLevel)).To(BeTrue())
	})

	It("names component loggers", func() {
		log := logger.For(logger.ComponentPoller)
		Expect(log).NotTo(BeNil())
		Expect(log.Desugar().Name()).To(Equal(logger.ComponentPoller))
	})
})
