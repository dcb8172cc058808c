// Copyright © 2018 NAME HERE <EMAIL ADDRESS>
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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the downlink path, exported at /metrics
var (
	framesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacelink_frames_ingested_total",
		Help: "Transfer frames received from the ingest channel",
	})
	framesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacelink_frames_rejected_total",
		Help: "Frames dropped for a failed FECF check or wrong spacecraft id",
	})
	clcwsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacelink_clcws_extracted_total",
		Help: "CLCWs recovered from telemetry frame OCFs",
	})
	packetsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacelink_packets_dispatched_total",
		Help: "Space packets demultiplexed and delivered to subscribers",
	})
	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spacelink_websocket_clients",
		Help: "Connected websocket clients",
	})
)
