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

// Package broker provides a simple in-process notification broker for
// broadcasting drive notifications to multiple consumers without blocking.
package broker

import (
	"context"
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/drives"
	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Broker manages notification subscriptions and broadcasts messages to all subscribers.
// It uses non-blocking sends so a slow consumer cannot block drive processing.
type Broker struct {
	ctx         context.Context
	source      <-chan drives.Notification
	subscribers map[int]chan drives.Notification
	done        chan struct{}
	mu          syncutil.RWMutex
	nextID      int
}

// NewBroker creates a new notification broker that reads from the source channel
// and broadcasts to all subscribers.
func NewBroker(ctx context.Context, source <-chan drives.Notification) *Broker {
	return &Broker{
		ctx:         ctx,
		source:      source,
		subscribers: make(map[int]chan drives.Notification),
		done:        make(chan struct{}),
	}
}

// Start begins the broadcast loop in a goroutine. When the source channel
// closes or the context is cancelled, all subscriber channels are closed.
func (b *Broker) Start() {
	go func() {
		defer close(b.done)
		for {
			select {
			case notif, ok := <-b.source:
				if !ok {
					log.Debug().Msg("broker: source channel closed")
					b.closeAllSubscribers()
					return
				}
				b.broadcast(notif)
			case <-b.ctx.Done():
				log.Debug().Msg("broker: context cancelled, shutting down")
				b.closeAllSubscribers()
				return
			}
		}
	}()
}

// Done is closed once the broadcast loop has exited.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// broadcast sends a notification to all subscribers using non-blocking sends.
// A subscriber whose channel is full misses the notification.
func (b *Broker) broadcast(notif drives.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- notif:
		default:
			log.Warn().
				Int("subscriber_id", id).
				Str("method", notif.Method).
				Str("key", notif.Key).
				Msg("subscriber channel full, dropping notification")
		}
	}
}

// Subscribe creates a new subscription. bufferSize is how many notifications
// can queue before they start being dropped for this subscriber.
func (b *Broker) Subscribe(bufferSize int) (notifChan <-chan drives.Notification, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id = b.nextID
	b.nextID++

	ch := make(chan drives.Notification, bufferSize)
	b.subscribers[id] = ch

	log.Debug().
		Int("subscriber_id", id).
		Int("buffer_size", bufferSize).
		Msg("new subscriber registered")

	notifChan = ch
	return notifChan, id
}

// Unsubscribe removes a subscription and closes its channel.
// It's safe to call this multiple times with the same ID.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
		log.Debug().Int("subscriber_id", id).Msg("subscriber unsubscribed")
	}
}

// Stop closes all subscriber channels.
func (b *Broker) Stop() {
	b.closeAllSubscribers()
}

func (b *Broker) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		log.Debug().Int("subscriber_id", id).Msg("closed subscriber channel on shutdown")
	}
	b.subscribers = make(map[int]chan drives.Notification)
}

// Feed is the drives.Notifier end of a broker's source channel. Notify never
// blocks: when the channel is full the notification is dropped.
type Feed struct {
	ch      chan drives.Notification
	dropped rate.Sometimes
}

// NewFeed creates a feed buffering up to size notifications.
func NewFeed(size int) *Feed {
	return &Feed{
		ch:      make(chan drives.Notification, size),
		dropped: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

func (f *Feed) Notify(n drives.Notification) {
	select {
	case f.ch <- n:
	default:
		f.dropped.Do(func() {
			log.Warn().
				Str("method", n.Method).
				Str("key", n.Key).
				Msg("notification feed full, dropping notification")
		})
	}
}

// Source is the channel to hand to NewBroker.
func (f *Feed) Source() <-chan drives.Notification {
	return f.ch
}

// Close ends the feed. The broker then shuts down its subscribers. Notify
// must not be called afterwards.
func (f *Feed) Close() {
	close(f.ch)
}
