// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialbridge reaches cubes through a USB BLE dongle that
// exchanges NMEA-style proprietary sentences over a serial port.
package serialbridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/cube_tracker/internal/transport"
)

// Options holds the serial port settings.
type Options struct {
	PortName string
	BaudRate uint
}

// Bridge is a transport.Sender over a serial port.
type Bridge struct {
	port   io.ReadWriteCloser
	parser *nmea.SentenceParser

	writeMu sync.Mutex
}

// Open opens the serial port described by o.
func Open(o Options) (*Bridge, error) {
	serialOpts := serial.OpenOptions{
		PortName:              o.PortName,
		BaudRate:              o.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.PortName, err)
	}
	log.Printf("serialbridge: port opened on %s at %d baud", o.PortName, o.BaudRate)
	return New(port), nil
}

// New wraps an open port.
func New(port io.ReadWriteCloser) *Bridge {
	return &Bridge{port: port, parser: newSentenceParser()}
}

// Run reads sentences until the port fails or ctx ends, delivering
// notifications to handle and capability announcements to registry (when
// not nil). Lines that do not parse are skipped.
func (b *Bridge) Run(ctx context.Context, handle func(transport.Notification), registry *transport.Registry) error {
	stop := context.AfterFunc(ctx, func() { b.port.Close() })
	defer stop()

	reader := bufio.NewReader(b.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := b.parser.Parse(line)
		if err != nil {
			log.Printf("serialbridge: parse error: %v (line: %q)", err, line)
			continue
		}
		m, ok := sentence.(TOIO)
		if !ok {
			continue
		}

		if m.Kind == capsKind {
			if registry == nil {
				continue
			}
			caps, err := transport.ParseCapabilities(m.Caps)
			if err != nil {
				log.Printf("serialbridge: caps for %s: %v", m.DeviceKey, err)
				continue
			}
			registry.Declare(m.DeviceKey, caps)
			continue
		}

		kind, err := transport.ParseKind(m.Kind)
		if err != nil {
			log.Printf("serialbridge: %v", err)
			continue
		}
		handle(transport.Notification{DeviceKey: m.DeviceKey, Kind: kind, Payload: m.Payload})
	}
}

// SendCommand writes one sentence carrying frame.
func (b *Bridge) SendCommand(ctx context.Context, deviceKey string, kind transport.Kind, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.writeLine(EncodeSentence(deviceKey, string(kind), frame))
}

// Publish writes a notification sentence, as the dongle would.
func (b *Bridge) Publish(ctx context.Context, n transport.Notification) error {
	return b.SendCommand(ctx, n.DeviceKey, n.Kind, n.Payload)
}

// DeclareCapabilities writes a capability announcement.
func (b *Bridge) DeclareCapabilities(ctx context.Context, deviceKey string, caps transport.Capabilities) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.writeLine(EncodeCapsSentence(deviceKey, caps.String()))
}

func (b *Bridge) writeLine(s string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := io.WriteString(b.port, s+"\r\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close closes the port.
func (b *Bridge) Close() error {
	return b.port.Close()
}
