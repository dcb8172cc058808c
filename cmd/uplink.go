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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/perigee/spacelink/ccsds"
	"github.com/spf13/cobra"
)

// uplinkCmd represents the uplink command
var uplinkCmd = &cobra.Command{
	Use:   "uplink [payload hex]",
	Short: "Wrap a command payload in a transfer frame and CLTU",
	Long: `Build a command transfer frame around the payload given as hex on the
command line (or read from --in), wrap the frame in a CLTU and write the
result as hex to stdout or as raw bytes to --out.  With --randomize the
frame is passed through the pseudo-randomizer before CLTU encoding, which
is what most ground stations expect on the physical uplink.`,
	Run: func(cmd *cobra.Command, args []string) {
		payload, err := readUplinkPayload(args)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		builder := ccsds.CommandFrameBuilder{
			SpacecraftID:     uplinkSpacecraftID,
			VirtualChannelID: uplinkVirtualChannel,
			FrameLength:      uplinkFrameLength,
		}
		frame, err := builder.Build(uplinkFrameCount, payload)
		if err != nil {
			fmt.Printf("building frame: %v\n", err)
			os.Exit(1)
		}

		if uplinkRandomize {
			ccsds.RandomizeInPlace(frame)
		}
		cltu := ccsds.EncodeCLTU(frame)

		if uplinkOutFile == "" {
			fmt.Println(hex.EncodeToString(cltu))
			return
		}
		if err := os.WriteFile(uplinkOutFile, cltu, 0644); err != nil {
			fmt.Printf("writing %s: %v\n", uplinkOutFile, err)
			os.Exit(1)
		}
	},
}

var uplinkSpacecraftID int
var uplinkVirtualChannel int
var uplinkFrameCount int
var uplinkFrameLength int
var uplinkRandomize bool
var uplinkInFile string
var uplinkOutFile string

func init() {
	rootCmd.AddCommand(uplinkCmd)

	uplinkCmd.Flags().IntVar(&uplinkSpacecraftID, "scid", 0, "Spacecraft id for the frame header")
	uplinkCmd.Flags().IntVar(&uplinkVirtualChannel, "vcid", 0, "Virtual channel id for the frame header")
	uplinkCmd.Flags().IntVar(&uplinkFrameCount, "count", 0, "Master channel frame count")
	uplinkCmd.Flags().IntVar(&uplinkFrameLength, "length", 0, "Total frame length (0 uses the default)")
	uplinkCmd.Flags().BoolVar(&uplinkRandomize, "randomize", false, "Randomize the frame before CLTU encoding")
	uplinkCmd.Flags().StringVar(&uplinkInFile, "in", "", "Read the payload from this file instead of the command line")
	uplinkCmd.Flags().StringVar(&uplinkOutFile, "out", "", "Write the CLTU to this file instead of printing hex")
}

func readUplinkPayload(args []string) ([]byte, error) {
	if uplinkInFile != "" {
		payload, err := os.ReadFile(uplinkInFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v", uplinkInFile, err)
		}
		return payload, nil
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("no payload given: pass hex on the command line or use --in")
	}
	payload, err := hex.DecodeString(args[0])
	if err != nil {
		return nil, fmt.Errorf("payload is not valid hex: %v", err)
	}
	return payload, nil
}
