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

package cmd

import (
	"log"

	"github.com/perigee/spacelink/ccsds"
	"github.com/perigee/spacelink/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [frame files]",
	Short: "Run the telemetry relay server",
	Long: `Run the relay server.  Telemetry transfer frames are read from the
files given on the command line (replayed at --bps if set) or streamed in by
an external frame source.  Each frame is FECF-checked, its CLCW is published
at /clcw, and the space packets in its data field are fanned out to
websocket subscribers by apid.`,
	Run: func(cmd *cobra.Command, args []string) {
		config := server.Config{
			Port:         servePort,
			SpacecraftID: serveSpacecraftID,
		}
		if serveConfigPath != "" {
			loaded, err := server.LoadConfig(serveConfigPath)
			if err != nil {
				log.Fatalf("loading config: %v", err)
			}
			config = loaded
		}

		channel := make(chan ccsds.Frame, 300)
		serv := server.Server{Config: config, FrameChan: channel}

		if len(args) > 0 {
			frameLength := config.FrameLength
			if frameLength == 0 {
				frameLength = ccsds.DefaultFrameLength
			}
			go FrameFileChannelBPS(frameLength, serveBitsPerSecond, args, channel)
		}

		serv.Run()
	},
}

var serveConfigPath string
var servePort int
var serveSpacecraftID int
var serveBitsPerSecond int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a yaml config file; overrides the other flags")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Port to listen on")
	serveCmd.Flags().IntVar(&serveSpacecraftID, "scid", 0, "Only accept frames from this spacecraft id (0 accepts all)")
	serveCmd.Flags().IntVar(&serveBitsPerSecond, "bps", 0, "Limit playback to bits per second")
}
