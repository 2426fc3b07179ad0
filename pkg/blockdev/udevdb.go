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

package blockdev

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// UdevRecord is the parsed content of one udev database entry.
type UdevRecord struct {
	Properties map[string]string
	Links      []string
	Tags       []string
}

// ParseUdevRecord parses the line-oriented udev database format:
//
//	S:disk/by-id/wwn-0x5000c500a1b2c3d4
//	E:ID_SERIAL=ST2000DM008_ZFL1234
//	G:systemd
//
// Unknown prefixes are skipped.
func ParseUdevRecord(data []byte) UdevRecord {
	rec := UdevRecord{Properties: make(map[string]string)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		prefix, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch prefix {
		case "E":
			key, val, ok := strings.Cut(value, "=")
			if !ok || key == "" {
				continue
			}
			rec.Properties[key] = val
		case "S":
			rec.Links = append(rec.Links, "/dev/"+value)
		case "G", "Q":
			rec.Tags = append(rec.Tags, value)
		}
	}

	return rec
}

// readUdevRecord loads the udev database entry for a block device by its
// major:minor numbers.
func readUdevRecord(fs afero.Fs, dataDir, major, minor string) (UdevRecord, error) {
	path := filepath.Join(dataDir, fmt.Sprintf("b%s:%s", major, minor))
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return UdevRecord{}, fmt.Errorf("failed to read udev record %s: %w", path, err)
	}
	return ParseUdevRecord(data), nil
}

// decodeUdevString undoes udev's \xNN escaping used by the *_ENC properties.
func decodeUdevString(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if c, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(c))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
