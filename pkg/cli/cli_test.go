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

package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/config"
	testhelpers "github.com/drivekeeper/drivekeeper-core/pkg/testing/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("drivekeeper", flag.ContinueOnError)
	f := SetupFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.CfgFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSetupFlags_Defaults(t *testing.T) {
	t.Parallel()

	f := parseFlags(t)
	assert.False(t, *f.Version)
	assert.False(t, *f.List)
	assert.False(t, *f.Daemon)
	assert.Empty(t, *f.Config)
	assert.Empty(t, *f.Monitor)
	assert.Equal(t, FormatJSON, *f.Format)
	assert.Nil(t, f.LogWriters())
}

func TestFlags_PreVersion(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := parseFlags(t, "-version").Pre(&out)
	require.ErrorIs(t, err, ErrHandled)
	assert.Equal(t, "Drivekeeper v"+config.AppVersion+"\n", out.String())

	out.Reset()
	require.NoError(t, parseFlags(t, "-list").Pre(&out))
	assert.Empty(t, out.String())
}

func TestFlags_DaemonLogsToStderr(t *testing.T) {
	t.Parallel()

	f := parseFlags(t, "-daemon")
	assert.Equal(t, []io.Writer{os.Stderr}, f.LogWriters())
}

//nolint:paralleltest // replaces the global logger
func TestFlags_Setup(t *testing.T) {
	orig := log.Logger
	t.Cleanup(func() { log.Logger = orig })

	logDir := t.TempDir()
	path := writeConfig(t, "config_schema = 1\nlog_dir = \""+logDir+"\"\n\n[monitor]\nsource = \"netlink\"\n")

	f := parseFlags(t, "-config", path, "-monitor", "none")
	cfg, err := f.Setup(config.BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "none", cfg.MonitorSource())

	log.Info().Msg("hello")
	_, err = os.Stat(filepath.Join(logDir, "drivekeeper.log"))
	require.NoError(t, err)
}

func TestFlags_SetupBadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config_schema = [not toml\n")
	_, err := parseFlags(t, "-config", path).Setup(config.BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config")
}

func opticalSysfs(t *testing.T) *blockdev.Sysfs {
	t.Helper()
	h := testhelpers.NewMemoryFS()
	require.NoError(t, h.AddBlockDevice(testhelpers.BlockDevice{
		Name:  "sr0",
		Major: 11,
		Udev:  map[string]string{"ID_CDROM": "1", "ID_SERIAL": "HL-DT-ST_DVDRAM_GH24NSD1_K1ZF9HB1234"},
	}))
	return &blockdev.Sysfs{Fs: h.Fs, Root: testhelpers.SysfsRoot, UdevDataDir: testhelpers.UdevDataDir}
}

func TestPrintDrives(t *testing.T) {
	t.Parallel()

	sysfs := opticalSysfs(t)
	cfg, err := config.NewConfigFile(filepath.Join(t.TempDir(), config.CfgFile), config.BaseDefaults)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, PrintDrives(cfg, sysfs, FormatJSON, &out))

	var list []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	require.Len(t, list, 1)
	attrs, ok := list[0]["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"/dev/sr0"}, attrs["members"])
	assert.Equal(t, true, attrs["optical"])
}

func TestPrintDrives_Error(t *testing.T) {
	t.Parallel()

	sysfs := &blockdev.Sysfs{Fs: afero.NewMemMapFs(), Root: "/sys", UdevDataDir: "/run/udev/data"}
	cfg, err := config.NewConfigFile(filepath.Join(t.TempDir(), config.CfgFile), config.BaseDefaults)
	require.NoError(t, err)

	err = PrintDrives(cfg, sysfs, FormatJSON, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error listing drives")
}

func TestPrintDrives_CSV(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfigFile(filepath.Join(t.TempDir(), config.CfgFile), config.BaseDefaults)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, PrintDrives(cfg, opticalSysfs(t), FormatCSV, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "key,instance_id,id,vendor,model,serial,wwn,bus,members,size"))
	assert.Contains(t, lines[1], "/dev/sr0")
	assert.True(t, strings.HasSuffix(lines[1], ",true,false"), lines[1])
}

func TestPrintDrives_UnknownFormat(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewConfigFile(filepath.Join(t.TempDir(), config.CfgFile), config.BaseDefaults)
	require.NoError(t, err)

	err = PrintDrives(cfg, opticalSysfs(t), "yaml", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
