// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelResult = "result"

	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultUnchanged = "unchanged"
	ResultSkipped   = "skipped"
)

var (
	ReloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playlist",
		Subsystem: "worker",
		Name:      "reload_total",
	}, []string{LabelResult})
	ReloadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "playlist",
		Subsystem: "worker",
		Name:      "reload_seconds",
	})
	LastReloadTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist",
		Subsystem: "worker",
		Name:      "last_reload_timestamp_seconds",
	})
)
