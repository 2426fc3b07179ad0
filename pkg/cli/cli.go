// Drivekeeper Core
// Copyright (c) 2026 The Drivekeeper Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Drivekeeper Core.
//
// Drivekeeper Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Drivekeeper Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Drivekeeper Core.  If not, see <http://www.gnu.org/licenses/>.

// Package cli holds the command line handling shared by the drivekeeper
// binaries.
package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/config"
	"github.com/drivekeeper/drivekeeper-core/pkg/helpers"
	"github.com/drivekeeper/drivekeeper-core/pkg/service"
	"github.com/gocarina/gocsv"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrHandled means a flag was fully actioned and the program should exit.
var ErrHandled = errors.New("flag handled")

type Flags struct {
	Version *bool
	Config  *string
	List    *bool
	Daemon  *bool
	Monitor *string
	Format  *string
}

// SetupFlags defines the common flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Config: fs.String(
			"config",
			"",
			"path to config file (default: system or user config dir)",
		),
		List: fs.Bool(
			"list",
			false,
			"print the current drives as JSON and exit",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run in the foreground and also log to stderr",
		),
		Monitor: fs.String(
			"monitor",
			"",
			"override the uevent source: auto, netlink, fsnotify or none",
		),
		Format: fs.String(
			"format",
			FormatJSON,
			"output format for -list: json or csv",
		),
	}
}

// Pre actions flags that need no environment. Returns ErrHandled when the
// program should exit.
func (f *Flags) Pre(out io.Writer) error {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Drivekeeper v%s\n", config.AppVersion)
		return ErrHandled
	}
	return nil
}

// LogWriters are the extra log destinations for the selected mode.
func (f *Flags) LogWriters() []io.Writer {
	if *f.Daemon {
		return []io.Writer{os.Stderr}
	}
	return nil
}

// Setup loads the config and initializes logging.
//
//nolint:gocritic // config struct copied for immutability
func (f *Flags) Setup(defaults config.Values) (*config.Instance, error) {
	var (
		cfg *config.Instance
		err error
	)
	if *f.Config != "" {
		cfg, err = config.NewConfigFile(*f.Config, defaults)
	} else {
		cfg, err = config.NewConfig(helpers.ConfigDir(), defaults)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if *f.Monitor != "" {
		cfg.SetMonitorSource(*f.Monitor)
	}

	logDir := cfg.LogDir()
	if logDir == "" {
		logDir = helpers.LogDir()
	}
	if err := helpers.InitLogging(logDir, cfg.DebugLogging(), f.LogWriters()); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	return cfg, nil
}

// Post actions flags that need the config. Returns ErrHandled when the
// program should exit.
func (f *Flags) Post(cfg *config.Instance, out io.Writer) error {
	if *f.List {
		if err := PrintDrives(cfg, nil, *f.Format, out); err != nil {
			return err
		}
		return ErrHandled
	}
	return nil
}

// driveRow is the flattened CSV form of a drive.
type driveRow struct {
	Key            string `csv:"key"`
	InstanceID     string `csv:"instance_id"`
	ID             string `csv:"id"`
	Vendor         string `csv:"vendor"`
	Model          string `csv:"model"`
	Serial         string `csv:"serial"`
	WWN            string `csv:"wwn"`
	Bus            string `csv:"bus"`
	Members        string `csv:"members"`
	Size           uint64 `csv:"size"`
	Removable      bool   `csv:"removable"`
	Optical        bool   `csv:"optical"`
	MediaAvailable bool   `csv:"media_available"`
}

// PrintDrives writes the current drive model to out as indented JSON or CSV.
func PrintDrives(cfg *config.Instance, sysfs *blockdev.Sysfs, format string, out io.Writer) error {
	if format != FormatJSON && format != FormatCSV {
		return fmt.Errorf("unknown output format: %s", format)
	}

	list, err := service.ListDrives(cfg, sysfs)
	if err != nil {
		return fmt.Errorf("error listing drives: %w", err)
	}

	if format == FormatCSV {
		rows := make([]driveRow, 0, len(list))
		for _, d := range list {
			a := d.Attributes
			rows = append(rows, driveRow{
				Key:            d.Key,
				InstanceID:     d.InstanceID,
				ID:             a.ID,
				Vendor:         a.Vendor,
				Model:          a.Model,
				Serial:         a.Serial,
				WWN:            a.WWN,
				Bus:            a.Bus,
				Members:        strings.Join(a.Members, " "),
				Size:           a.Size,
				Removable:      a.Removable,
				Optical:        a.Optical,
				MediaAvailable: a.MediaAvailable,
			})
		}
		if err := gocsv.Marshal(rows, out); err != nil {
			return fmt.Errorf("error encoding drives: %w", err)
		}
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("error encoding drives: %w", err)
	}
	return nil
}
