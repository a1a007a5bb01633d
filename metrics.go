// Copyright 2025 The Where Is Teemo Authors
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

package teemo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics shared by the relay and the config endpoint, exported on
// the control listener's /metrics route.
var (
	MetricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "teemo",
		Subsystem: "relay",
		Name:      "sessions_active",
		Help:      "Number of XMPP relay sessions currently open.",
	})

	MetricFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teemo",
		Subsystem: "relay",
		Name:      "frames_total",
		Help:      "Stanza frames forwarded client→server, by kind.",
	}, []string{"kind"})

	MetricPresenceRewritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teemo",
		Subsystem: "relay",
		Name:      "presence_rewritten_total",
		Help:      "Presence stanzas rewritten to unavailable.",
	})

	MetricConfigRewrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teemo",
		Subsystem: "configproxy",
		Name:      "chat_host_rewrites_total",
		Help:      "Chat-host fields rewritten in config responses.",
	})
)
