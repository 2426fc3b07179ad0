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

// Package service wires the drive model to the host: uevent monitor,
// housekeeping scheduler and notification publishers.
package service

import (
	"context"
	"fmt"

	"github.com/drivekeeper/drivekeeper-core/pkg/blockdev"
	"github.com/drivekeeper/drivekeeper-core/pkg/config"
	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/drivekeeper/drivekeeper-core/pkg/probes"
	"github.com/drivekeeper/drivekeeper-core/pkg/service/broker"
	"github.com/drivekeeper/drivekeeper-core/pkg/service/publishers"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	feedBuffer       = 256
	subscriberBuffer = 100
)

// Options override the host-facing parts of the service. Zero values use
// the live system as described by the config.
type Options struct {
	Sysfs   *blockdev.Sysfs
	Monitor blockdev.Monitor
	Clock   clockwork.Clock
	// Probes replaces the built-in housekeeping probes when non-nil.
	Probes []drives.Probe
	// Publishers are started in addition to the configured ones.
	Publishers []publishers.Publisher
}

// Service is a running drive daemon.
type Service struct {
	registry  *drives.Registry
	processor *drives.Processor
	scheduler *drives.Scheduler
	broker    *broker.Broker
	feed      *broker.Feed
	monitor   blockdev.Monitor
	cancel    context.CancelFunc
	done      chan struct{}
	eventsEnd chan struct{}
	pubs      []publishers.Publisher
}

// DriveInfo is one entry of a drive listing.
type DriveInfo struct {
	Key        string            `json:"key"`
	InstanceID string            `json:"instance_id"`
	Attributes drives.Attributes `json:"attributes"`
}

func sysfsFor(cfg *config.Instance, opts Options) *blockdev.Sysfs {
	if opts.Sysfs != nil {
		return opts.Sysfs
	}
	return blockdev.NewSysfs(cfg.SysfsRoot(), cfg.UdevDataDir())
}

func defaultProbes() []drives.Probe {
	return []drives.Probe{
		probes.NewMediaProbe(),
		probes.NewEjectSafetyProbe(),
		probes.NewActivityProbe(),
	}
}

// Start builds the drive model from the current inventory, then keeps it up
// to date from the uevent stream until Stop is called.
//
//nolint:gocritic // options struct passed by value
func Start(cfg *config.Instance, opts Options) (*Service, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sysfs := sysfsFor(cfg, opts)

	monitor := opts.Monitor
	if monitor == nil {
		var err error
		monitor, err = blockdev.NewMonitor(blockdev.MonitorOptions{
			Sysfs:  sysfs,
			Source: cfg.MonitorSource(),
			DevDir: cfg.DevDir(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create uevent monitor: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		registry:  drives.NewRegistry(),
		feed:      broker.NewFeed(feedBuffer),
		monitor:   monitor,
		cancel:    cancel,
		done:      make(chan struct{}),
		eventsEnd: make(chan struct{}),
	}

	s.broker = broker.NewBroker(context.Background(), s.feed.Source())
	s.broker.Start()

	probeSet := opts.Probes
	if probeSet == nil {
		probeSet = defaultProbes()
	}
	hk := drives.NewHousekeeper(probeSet, drives.HousekeeperOptions{
		Clock:        clock,
		MinInterval:  cfg.HousekeepingMinInterval(),
		ProbeTimeout: cfg.ProbeTimeout(),
	})
	s.scheduler = drives.NewScheduler(s.registry, hk, s.feed, drives.SchedulerOptions{
		Clock:         clock,
		Interval:      cfg.HousekeepingInterval(),
		MaxConcurrent: cfg.HousekeepingMaxConcurrent(),
	})

	// New drives get probed right away instead of waiting for the next tick.
	notifier := drives.NotifierFunc(func(n drives.Notification) {
		s.feed.Notify(n)
		if n.Method == drives.NotificationAdded {
			s.scheduler.Trigger()
		}
	})
	s.processor = drives.NewProcessor(s.registry, drives.NewFilter(cfg.DenyPrefixes()...), notifier)
	s.processor.AddDestroyListener(s.scheduler)

	log.Info().Msg("starting publishers")
	s.pubs = startPublishers(cfg, s.broker, opts.Publishers)

	log.Info().Msg("starting uevent monitor")
	if err := monitor.Start(); err != nil {
		cancel()
		s.stopPipeline()
		return nil, fmt.Errorf("failed to start uevent monitor: %w", err)
	}

	inventory, err := sysfs.Inventory()
	if err != nil {
		log.Error().Err(err).Msg("error reading device inventory, relying on hotplug events")
	} else {
		s.processor.Replay(inventory)
	}

	go s.processEvents()

	s.scheduler.Start(ctx)
	s.scheduler.Trigger()

	go func() {
		<-ctx.Done()
		log.Info().Msg("service context cancelled, running cleanup")
		s.shutdown()
		log.Info().Msg("service cleanup completed")
		close(s.done)
	}()

	log.Info().Int("drives", s.registry.Len()).Msg("service fully initialized")
	return s, nil
}

func (s *Service) processEvents() {
	defer close(s.eventsEnd)
	for ev := range s.monitor.Events() {
		s.processor.Handle(ev)
	}
	log.Debug().Msg("uevent stream closed")
}

func (s *Service) shutdown() {
	s.monitor.Stop()
	<-s.eventsEnd
	s.stopPipeline()
}

// stopPipeline stops the scheduler before closing the feed, so the broker
// can drain what is queued and then close every subscriber.
func (s *Service) stopPipeline() {
	s.scheduler.Stop()
	s.feed.Close()
	<-s.broker.Done()
	for _, p := range s.pubs {
		p.Stop()
	}
}

// Stop shuts the service down and waits for cleanup to finish.
func (s *Service) Stop() error {
	s.cancel()
	<-s.done
	return nil
}

// Done is closed once the service has shut down.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Subscribe returns a notification stream for the caller. It is closed at
// shutdown.
func (s *Service) Subscribe(bufferSize int) (<-chan drives.Notification, int) {
	return s.broker.Subscribe(bufferSize)
}

// Drives lists the live drives ordered by key.
func (s *Service) Drives() []DriveInfo {
	return listDrives(s.registry)
}

func listDrives(reg *drives.Registry) []DriveInfo {
	list := reg.List()
	out := make([]DriveInfo, 0, len(list))
	for _, d := range list {
		out = append(out, DriveInfo{
			Key:        d.Key(),
			InstanceID: d.InstanceID().String(),
			Attributes: d.Attributes(),
		})
	}
	return out
}

// ListDrives builds the drive model from the current inventory once and
// returns it, without monitoring or housekeeping.
func ListDrives(cfg *config.Instance, sysfs *blockdev.Sysfs) ([]DriveInfo, error) {
	if sysfs == nil {
		sysfs = sysfsFor(cfg, Options{})
	}
	inventory, err := sysfs.Inventory()
	if err != nil {
		return nil, fmt.Errorf("failed to read device inventory: %w", err)
	}

	reg := drives.NewRegistry()
	processor := drives.NewProcessor(reg, drives.NewFilter(cfg.DenyPrefixes()...), nil)
	processor.Replay(inventory)

	return listDrives(reg), nil
}

// startPublishers starts the configured publishers plus any extras, each on
// its own broker subscription. A publisher that fails to start is skipped.
func startPublishers(
	cfg *config.Instance,
	b *broker.Broker,
	extra []publishers.Publisher,
) []publishers.Publisher {
	candidates := make([]publishers.Publisher, 0, len(extra)+1)

	for _, mqttCfg := range cfg.GetMQTTPublishers() {
		if !mqttCfg.IsEnabled() {
			continue
		}
		log.Info().Msgf("starting MQTT publisher: %s (topic: %s)", mqttCfg.Broker, mqttCfg.Topic)
		candidates = append(candidates, publishers.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.Topic, mqttCfg.Filter))
	}
	if cfg.DBusPublisherEnabled() {
		log.Info().Msg("starting D-Bus publisher")
		candidates = append(candidates, publishers.NewDBusPublisher())
	}
	candidates = append(candidates, extra...)

	active := make([]publishers.Publisher, 0, len(candidates))
	for _, p := range candidates {
		ch, id := b.Subscribe(subscriberBuffer)
		if err := p.Start(ch); err != nil {
			log.Error().Err(err).Msgf("failed to start publisher %T", p)
			b.Unsubscribe(id)
			continue
		}
		active = append(active, p)
	}

	if len(active) > 0 {
		log.Info().Msgf("started %d publisher(s)", len(active))
	}
	return active
}
