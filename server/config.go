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
	"fmt"
	"os"

	"github.com/perigee/spacelink/ccsds"
	"gopkg.in/yaml.v3"
)

// Config holds the relay's startup settings, normally loaded from a yaml file
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// SpacecraftID filters ingested frames; 0 disables filtering
	SpacecraftID int `yaml:"spacecraft_id"`

	// FrameLength is the fixed transfer frame size for this session
	FrameLength int `yaml:"frame_length"`

	WebsocketPrefix string `yaml:"websocket_prefix"`
}

// applyDefaults fills zero-valued fields
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.FrameLength == 0 {
		c.FrameLength = ccsds.DefaultFrameLength
	}
	if c.WebsocketPrefix == "" {
		c.WebsocketPrefix = "/realtime/"
	}
}

// LoadConfig reads a yaml config file and validates it
func LoadConfig(path string) (Config, error) {
	var config Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	config.applyDefaults()
	if config.SpacecraftID < 0 || config.SpacecraftID > ccsds.MaxSpacecraftID {
		return config, fmt.Errorf("config spacecraft_id %d out of range", config.SpacecraftID)
	}
	if config.FrameLength < ccsds.PrimaryHeaderLength+ccsds.FECFLength+1 {
		return config, fmt.Errorf("config frame_length %d too small", config.FrameLength)
	}
	return config, nil
}
