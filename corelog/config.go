// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package corelog

import (
	"path/filepath"
)

const DefaultLogFile = "smicpd.log"

// Config selects the log sinks shared by every unit of the daemon.
type Config struct {
	DisableConsole bool `yaml:"disable_console"`
	// JSON writes raw json lines to the console instead of the
	// human readable form.
	JSON bool `yaml:"json"`

	// ToFile enables the rotating file sink.  The fields below only
	// apply to it.
	ToFile     bool   `yaml:"to_file"`
	Directory  string `yaml:"directory"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func (Config) Default() Config {
	return Config{
		Directory:  "logs",
		Filename:   DefaultLogFile,
		MaxSizeMB:  150,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

func (config Config) filePath() string {
	name := config.Filename
	if name == "" {
		name = DefaultLogFile
	}
	return filepath.Join(config.Directory, name)
}
