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

package publishers

import (
	"time"

	"github.com/drivekeeper/drivekeeper-core/pkg/helpers/syncutil"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeMQTTClient records publishes instead of talking to a broker.
type fakeMQTTClient struct {
	connectErr  error
	publishErr  error
	messages    []sentMessage
	disconnects int
	connected   bool
	mu          syncutil.Mutex
}

type sentMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newFakeMQTTClient() *fakeMQTTClient {
	return &fakeMQTTClient{}
}

func (m *fakeMQTTClient) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *fakeMQTTClient) disconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

func (m *fakeMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *fakeMQTTClient) IsConnectionOpen() bool {
	return m.IsConnected()
}

func (m *fakeMQTTClient) Connect() mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return &fakeToken{err: m.connectErr}
	}
	m.connected = true
	return &fakeToken{complete: true}
}

func (m *fakeMQTTClient) Disconnect(_ uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnects++
}

func (m *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	if m.publishErr != nil {
		return &fakeToken{err: m.publishErr}
	}
	body, _ := payload.([]byte)
	m.mu.Lock()
	m.messages = append(m.messages, sentMessage{
		topic:    topic,
		payload:  body,
		qos:      qos,
		retained: retained,
	})
	m.mu.Unlock()
	return &fakeToken{complete: true}
}

func (*fakeMQTTClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{complete: true}
}

func (*fakeMQTTClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{complete: true}
}

func (*fakeMQTTClient) Unsubscribe(_ ...string) mqtt.Token {
	return &fakeToken{complete: true}
}

func (*fakeMQTTClient) AddRoute(_ string, _ mqtt.MessageHandler) {}

func (*fakeMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type fakeToken struct {
	err      error
	complete bool
}

func (*fakeToken) Wait() bool {
	return true
}

func (t *fakeToken) WaitTimeout(_ time.Duration) bool {
	return t.complete
}

func (*fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error {
	return t.err
}
