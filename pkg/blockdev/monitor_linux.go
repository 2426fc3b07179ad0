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

//go:build linux

package blockdev

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mdlayher/kobject"
	"github.com/rs/zerolog/log"
)

const (
	eventBufferSize = 64

	// receiveRetryDelay spaces out retries after a netlink receive error so
	// a broken socket cannot spin the CPU.
	receiveRetryDelay = 100 * time.Millisecond
)

// kobjectReceiver is the part of kobject.Client the netlink monitor uses.
type kobjectReceiver interface {
	Receive() (*kobject.Event, error)
	Close() error
}

// NewMonitor creates a uevent monitor. With SourceAuto it tries the kernel
// netlink socket first and falls back to watching the /dev directory.
func NewMonitor(opts MonitorOptions) (Monitor, error) {
	if opts.Sysfs == nil {
		opts.Sysfs = NewSysfs("", "")
	}
	if opts.DevDir == "" {
		opts.DevDir = DefaultDevDir
	}

	switch opts.Source {
	case SourceNone:
		return newNopMonitor(), nil
	case SourceFsnotify:
		return newFsnotifyMonitor(opts), nil
	case SourceNetlink, SourceAuto, "":
		client, err := kobject.New()
		if err == nil {
			log.Debug().Msg("using kernel netlink for uevent monitoring")
			return newNetlinkMonitor(client, opts.Sysfs), nil
		}
		if opts.Source == SourceNetlink {
			return nil, fmt.Errorf("failed to open uevent netlink socket: %w", err)
		}
		log.Debug().Err(err).Msg("netlink unavailable, using fsnotify fallback for uevent monitoring")
		return newFsnotifyMonitor(opts), nil
	default:
		return nil, fmt.Errorf("unknown uevent source: %s", opts.Source)
	}
}

// netlinkMonitor reads kernel uevents from a NETLINK_KOBJECT_UEVENT socket.
type netlinkMonitor struct {
	client   kobjectReceiver
	sysfs    *Sysfs
	events   chan Uevent
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newNetlinkMonitor(client kobjectReceiver, sysfs *Sysfs) *netlinkMonitor {
	return &netlinkMonitor{
		client:   client,
		sysfs:    sysfs,
		events:   make(chan Uevent, eventBufferSize),
		stopChan: make(chan struct{}),
	}
}

func (m *netlinkMonitor) Events() <-chan Uevent {
	return m.events
}

func (m *netlinkMonitor) Start() error {
	m.wg.Add(1)
	go m.receive()
	return nil
}

func (m *netlinkMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		// closing the socket unblocks Receive
		_ = m.client.Close()
		m.wg.Wait()
		close(m.events)
	})
}

func (m *netlinkMonitor) receive() {
	defer m.wg.Done()

	for {
		ev, err := m.client.Receive()

		select {
		case <-m.stopChan:
			return
		default:
		}

		if err != nil {
			log.Warn().Err(err).Msg("failed to receive uevent")
			select {
			case <-m.stopChan:
				return
			case <-time.After(receiveRetryDelay):
			}
			continue
		}

		if ev == nil || ev.Subsystem != subsystemBlock {
			continue
		}

		uevent := Uevent{
			Action: ParseAction(ev.Action),
			Device: m.sysfs.FromEvent(ev),
			Seq:    int64(ev.Sequence),
		}

		select {
		case m.events <- uevent:
			log.Debug().
				Str("action", string(uevent.Action)).
				Str("devpath", ev.DevicePath).
				Int64("seqnum", uevent.Seq).
				Msg("uevent received")
		case <-m.stopChan:
			return
		}
	}
}

// fsnotifyMonitor watches the /dev directory for block device nodes coming
// and going. It is used on systems where the netlink socket is unavailable,
// such as unprivileged containers. Change events cannot be observed this way.
type fsnotifyMonitor struct {
	watcher  *fsnotify.Watcher
	sysfs    *Sysfs
	events   chan Uevent
	stopChan chan struct{}
	devDir   string
	known    map[string]string // name -> device path of block nodes seen
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newFsnotifyMonitor(opts MonitorOptions) *fsnotifyMonitor {
	return &fsnotifyMonitor{
		sysfs:    opts.Sysfs,
		devDir:   opts.DevDir,
		events:   make(chan Uevent, eventBufferSize),
		stopChan: make(chan struct{}),
		known:    make(map[string]string),
	}
}

func (m *fsnotifyMonitor) Events() <-chan Uevent {
	return m.events
}

func (m *fsnotifyMonitor) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(m.devDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", m.devDir, err)
	}

	m.watcher = watcher
	m.seed()

	log.Debug().Str("dir", m.devDir).Msg("watching for block device nodes")

	m.wg.Add(1)
	go m.watch()

	return nil
}

func (m *fsnotifyMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		close(m.events)
	})
}

func (m *fsnotifyMonitor) watch() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if uevent, ok := m.translate(event); ok {
				select {
				case m.events <- uevent:
				case <-m.stopChan:
					return
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

// seed records the block devices already present, so removing a node that
// predates Start still yields a remove uevent.
func (m *fsnotifyMonitor) seed() {
	events, err := m.sysfs.Walk()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list existing block devices")
		return
	}
	for _, ev := range events {
		dev := m.sysfs.FromEvent(ev)
		m.known[dev.Name()] = DevicePath(dev)
	}
}

// translate turns a /dev node event into a uevent. Non-block nodes are ignored.
func (m *fsnotifyMonitor) translate(event fsnotify.Event) (Uevent, bool) {
	name := filepath.Base(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		if !m.sysfs.IsBlock(name) {
			return Uevent{}, false
		}
		ev, err := m.sysfs.ByName(name)
		if err != nil {
			log.Debug().Err(err).Str("name", name).Msg("block node appeared without sysfs entry")
			return Uevent{}, false
		}
		dev := m.sysfs.FromEvent(ev)
		m.known[name] = DevicePath(dev)
		return Uevent{Action: ActionAdd, Device: dev}, true

	case event.Has(fsnotify.Remove):
		node, ok := m.known[name]
		if !ok {
			return Uevent{}, false
		}
		delete(m.known, name)
		return Uevent{
			Action: ActionRemove,
			Device: &StaticDevice{
				KernelName: name,
				Class:      subsystemBlock,
				Node:       node,
				Props:      map[string]string{"DEVNAME": node},
			},
		}, true
	}

	return Uevent{}, false
}
