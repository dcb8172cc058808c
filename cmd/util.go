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
	"io"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/perigee/spacelink/ccsds"
)

//
// Frame playback
//

// FrameFileCallback reads fixed-length transfer frames from files matching
// the given patterns and sends each to a callback.  The frame buffer is
// reused; callbacks that keep a frame must copy it.
func FrameFileCallback(frameLength int, args []string, callback func(f ccsds.Frame)) {
	forEachMatchingFile(args, func(fname string) {
		file, err := os.Open(fname)
		if err != nil {
			log.Printf("error opening frame file %s: %v\n", fname, err)
			return
		}
		defer file.Close()

		buf := make(ccsds.Frame, frameLength)
		for {
			_, err := io.ReadFull(file, buf)
			if err == io.EOF {
				return
			}
			if err != nil {
				log.Printf("error reading frame file %s: %v\n", fname, err)
				return
			}
			callback(buf)
		}
	})
}

// FrameFileChannelBPS reads frames like FrameFileCallback, copies each one,
// and sends them to a channel, slowing playback to a given bits-per-second.
// A bps of 0 plays back as fast as the channel drains.
func FrameFileChannelBPS(frameLength, bps int, args []string, channel chan ccsds.Frame) {
	var totalBits int64
	startTime := time.Now()
	targetTime := startTime

	FrameFileCallback(frameLength, args, func(f ccsds.Frame) {
		buf := make(ccsds.Frame, len(f))
		copy(buf, f)

		if bps > 0 {
			// Insert the governer
			time.Sleep(targetTime.Sub(time.Now()))
			totalBits += 8 * int64(len(f))
			targetTime = startTime.Add(time.Duration(float64(totalBits) / float64(bps) * float64(time.Second)))
		}

		channel <- buf
	})
	close(channel)
}

//
// Packet playback
//

// PacketFileCallback generates a stream of packets from files matching the
// given patterns and sends them using a callback
func PacketFileCallback(args []string, callback func(p *ccsds.Packet)) {
	forEachMatchingFile(args, func(fname string) {
		pktfile := ccsds.PacketFile{Filename: fname}
		if err := pktfile.Iterate(callback); err != nil {
			log.Printf("error reading packet file: %v\n", err)
		}
	})
}

// PacketFileChannel generates a stream of packets and sends copies to a channel
func PacketFileChannel(args []string, channel chan *ccsds.Packet) {
	PacketFileCallback(args, func(p *ccsds.Packet) {
		buf := make(ccsds.Packet, p.TotalLength())
		copy(buf, *p)
		channel <- &buf
	})
	close(channel)
}

//
// File patterns
//

func forEachMatchingFile(args []string, f func(fname string)) {
	for _, basePattern := range args {
		pat := basePattern
		if len(pat) > 1 && pat[:2] == "~/" {
			usr, _ := user.Current()
			dir := usr.HomeDir
			pat = filepath.Join(dir, pat[2:])
		}
		if !filepath.IsAbs(pat) {
			pat = filepath.Join(".", pat)
		}
		matches, err := filepath.Glob(pat)
		if err != nil {
			log.Printf("error expanding file pattern %s: %v\n", pat, err)
			continue
		}
		for _, fname := range matches {
			f(fname)
		}
	}
}
