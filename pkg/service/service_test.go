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

package service

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/config"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/drivekeeper/drivekeeper-core/pkg/service/publishers"
	"github.com/drivekeeper/drivekeeper-core/pkg/testing/fixtures"
	testhelpers "github.com/drivekeeper/drivekeeper-core/pkg/testing/helpers"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	events   chan blockdev.Uevent
	startErr error
	stopOnce sync.Once
	mu       sync.Mutex
	stopped  bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{events: make(chan blockdev.Uevent, 8)}
}

func (m *fakeMonitor) Events() <-chan blockdev.Uevent { return m.events }
func (m *fakeMonitor) Start() error                   { return m.startErr }

func (m *fakeMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.events)
	})
}

func (m *fakeMonitor) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// recordingPublisher keeps every notification it is handed.
type recordingPublisher struct {
	startErr error
	got      []drives.Notification
	closed   chan struct{}
	mu       sync.Mutex
	stops    int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{closed: make(chan struct{})}
}

func (p *recordingPublisher) Start(ch <-chan drives.Notification) error {
	if p.startErr != nil {
		return p.startErr
	}
	go func() {
		defer close(p.closed)
		for n := range ch {
			p.mu.Lock()
			p.got = append(p.got, n)
			p.mu.Unlock()
		}
	}()
	return nil
}

func (p *recordingPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *recordingPublisher) methodsFor(key string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, n := range p.got {
		if n.Key == key {
			out = append(out, n.Method)
		}
	}
	return out
}

// newTestSysfs holds one disk with a partition, and a loop device.
func newTestSysfs(t *testing.T) *blockdev.Sysfs {
	t.Helper()
	h := testhelpers.NewMemoryFS()
	require.NoError(t, h.AddBlockDevice(testhelpers.BlockDevice{
		Name:       "sda",
		Major:      8,
		Attrs:      map[string]string{"size": "3907029168"},
		Udev:       map[string]string{"ID_SERIAL": "ST2000DM008-2FR102_ZFL1234", "ID_BUS": "ata"},
		Partitions: []string{"sda1"},
	}))
	require.NoError(t, h.AddBlockDevice(testhelpers.BlockDevice{Name: "loop0", Major: 7}))
	return &blockdev.Sysfs{Fs: h.Fs, Root: testhelpers.SysfsRoot, UdevDataDir: testhelpers.UdevDataDir}
}

func newTestConfig(t *testing.T) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfigFile(filepath.Join(t.TempDir(), config.CfgFile), config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

type serviceEnv struct {
	svc     *Service
	monitor *fakeMonitor
	pub     *recordingPublisher
}

func startTestService(t *testing.T) *serviceEnv {
	t.Helper()
	env := &serviceEnv{monitor: newFakeMonitor(), pub: newRecordingPublisher()}
	svc, err := Start(newTestConfig(t), Options{
		Sysfs:      newTestSysfs(t),
		Monitor:    env.monitor,
		Clock:      clockwork.NewFakeClock(),
		Probes:     []drives.Probe{},
		Publishers: []publishers.Publisher{env.pub},
	})
	require.NoError(t, err)
	env.svc = svc
	return env
}

func TestStart_ReplaysInventory(t *testing.T) {
	t.Parallel()

	env := startTestService(t)
	t.Cleanup(func() { _ = env.svc.Stop() })

	list := env.svc.Drives()
	require.Len(t, list, 1)
	assert.Equal(t, []string{"/dev/sda"}, list[0].Attributes.Members)
	assert.Equal(t, "ata", list[0].Attributes.Bus)
	assert.NotEmpty(t, list[0].InstanceID)

	key := list[0].Key
	require.Eventually(t, func() bool {
		return len(env.pub.methodsFor(key)) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, drives.NotificationAdded, env.pub.methodsFor(key)[0])
}

func TestStart_FollowsHotplug(t *testing.T) {
	t.Parallel()

	env := startTestService(t)
	t.Cleanup(func() { _ = env.svc.Stop() })

	stick := fixtures.NewSerialDisk("sdb", "Cruzer_Blade_4C530001")
	env.monitor.events <- blockdev.Uevent{Action: blockdev.ActionAdd, Device: stick}

	require.Eventually(t, func() bool { return len(env.svc.Drives()) == 2 },
		time.Second, 5*time.Millisecond)

	env.monitor.events <- blockdev.Uevent{Action: blockdev.ActionRemove, Device: stick}

	require.Eventually(t, func() bool { return len(env.svc.Drives()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/dev/sda"}, env.svc.Drives()[0].Attributes.Members)
}

func TestStop_ClosesEverything(t *testing.T) {
	t.Parallel()

	env := startTestService(t)
	sub, _ := env.svc.Subscribe(4)

	require.NoError(t, env.svc.Stop())

	select {
	case <-env.svc.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.True(t, env.monitor.isStopped())

	select {
	case <-env.pub.closed:
	case <-time.After(time.Second):
		t.Fatal("publisher subscription not closed")
	}
	env.pub.mu.Lock()
	assert.Equal(t, 1, env.pub.stops)
	env.pub.mu.Unlock()

	for range sub {
	}
}

func TestStart_MonitorStartError(t *testing.T) {
	t.Parallel()

	monitor := newFakeMonitor()
	monitor.startErr = errors.New("netlink: permission denied")
	pub := newRecordingPublisher()

	_, err := Start(newTestConfig(t), Options{
		Sysfs:      newTestSysfs(t),
		Monitor:    monitor,
		Clock:      clockwork.NewFakeClock(),
		Probes:     []drives.Probe{},
		Publishers: []publishers.Publisher{pub},
	})
	require.ErrorIs(t, err, monitor.startErr)
	assert.Contains(t, err.Error(), "failed to start uevent monitor")

	pub.mu.Lock()
	assert.Equal(t, 1, pub.stops)
	pub.mu.Unlock()
}

func TestStart_SkipsFailingPublisher(t *testing.T) {
	t.Parallel()

	bad := newRecordingPublisher()
	bad.startErr = errors.New("broker unreachable")
	good := newRecordingPublisher()

	svc, err := Start(newTestConfig(t), Options{
		Sysfs:      newTestSysfs(t),
		Monitor:    newFakeMonitor(),
		Clock:      clockwork.NewFakeClock(),
		Probes:     []drives.Probe{},
		Publishers: []publishers.Publisher{bad, good},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Stop())

	assert.Equal(t, 0, bad.stops)
	assert.Equal(t, 1, good.stops)
}

func TestListDrives(t *testing.T) {
	t.Parallel()

	list, err := ListDrives(newTestConfig(t), newTestSysfs(t))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"/dev/sda"}, list[0].Attributes.Members)
}

func TestListDrives_MissingSysfs(t *testing.T) {
	t.Parallel()

	sysfs := &blockdev.Sysfs{Fs: afero.NewMemMapFs(), Root: "/sys", UdevDataDir: "/run/udev/data"}
	_, err := ListDrives(newTestConfig(t), sysfs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read device inventory")
}
