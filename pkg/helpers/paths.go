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

package helpers

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	SystemConfigDir = "/etc/drivekeeper"
	SystemLogDir    = "/var/log/drivekeeper"
	appDirName      = "drivekeeper"
)

// ConfigDir is the system config directory when running as root, otherwise
// the user's XDG config directory.
func ConfigDir() string {
	if os.Geteuid() == 0 {
		return SystemConfigDir
	}
	return filepath.Join(xdg.ConfigHome, appDirName)
}

// LogDir is where logs go when the config does not say otherwise.
func LogDir() string {
	if os.Geteuid() == 0 {
		return SystemLogDir
	}
	return filepath.Join(xdg.StateHome, appDirName, "logs")
}
