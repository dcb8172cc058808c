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
	"errors"
	"fmt"
	"os"

	"github.com/perigee/spacelink/ccsds"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [files]",
	Short: "Dump CCSDS frame, packet or CLTU files as CSV",
	Long: `Read the files on the command line and print one CSV line per record.
The file format is chosen with --frames, --packets or --cltu.  Frame files
are fixed-length transfer frames; each line shows the header fields, the
FECF check result and the CLCW if the frame carries one.  Packet files are
concatenated space packets.  A CLTU file holds a single CLTU; the frame of
--length bytes is recovered exactly and printed as hex, after derandomizing
if --derandomize is set.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("requires at least one file")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		switch {
		case decodeCLTUBool:
			decodeCLTUFiles(args)
		case decodePacketsBool:
			decodePacketFiles(args)
		default:
			decodeFrameFiles(args)
		}
	},
}

var decodeFramesBool bool
var decodePacketsBool bool
var decodeCLTUBool bool
var decodeDerandomize bool
var decodeFrameLength int

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().BoolVarP(&decodeFramesBool, "frames", "f", true, "use if the files contain transfer frames")
	decodeCmd.Flags().BoolVarP(&decodePacketsBool, "packets", "p", false, "use if the files contain ccsds packets")
	decodeCmd.Flags().BoolVar(&decodeCLTUBool, "cltu", false, "use if each file contains a single CLTU")
	decodeCmd.Flags().BoolVar(&decodeDerandomize, "derandomize", false, "derandomize frames recovered from CLTUs")
	decodeCmd.Flags().IntVar(&decodeFrameLength, "length", ccsds.DefaultFrameLength, "Transfer frame length in bytes")
}

func decodeFrameFiles(args []string) {
	fmt.Println("scid,vcid,count,command,fecf_ok,clcw_report")
	FrameFileCallback(decodeFrameLength, args, func(f ccsds.Frame) {
		header, err := ccsds.ParseFrameHeader(f)
		if err != nil {
			fmt.Printf(",,,,%v,\n", err)
			return
		}
		clcwReport := ""
		if clcw, err := ccsds.ParseCLCW(f.OCF()); err == nil {
			clcwReport = fmt.Sprintf("%d", clcw.ReportValue)
		}
		fmt.Printf("%d,%d,%d,%v,%v,%s\n",
			header.SpacecraftID, header.VirtualChannelID, header.FrameCount(),
			header.IsCommandFrame(), f.VerifyFECF(), clcwReport)
	})
}

func decodePacketFiles(args []string) {
	fmt.Println("apid,seq,flags,len")
	PacketFileCallback(args, func(p *ccsds.Packet) {
		fmt.Printf("%d,%d,%d,%d\n", p.APID(), p.SequenceCount(), p.SequenceFlags(), p.DataLength())
	})
}

func decodeCLTUFiles(args []string) {
	forEachMatchingFile(args, func(fname string) {
		cltu, err := os.ReadFile(fname)
		if err != nil {
			fmt.Printf("%s: %v\n", fname, err)
			return
		}
		frame, err := ccsds.DecodeCLTUPayload(cltu, decodeFrameLength)
		if err != nil {
			fmt.Printf("%s: %v\n", fname, err)
			return
		}
		if decodeDerandomize {
			ccsds.DerandomizeInPlace(frame)
		}
		fmt.Printf("%s,%s\n", fname, hex.EncodeToString(frame))
	})
}
