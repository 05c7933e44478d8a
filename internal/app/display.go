// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
	"github.com/relabs-tech/cube_tracker/internal/transport"
)

// panel is the part of *ssd1306.Dev the display loop needs.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayData holds the latest telemetry of the followed cube.
type DisplayData struct {
	mu sync.RWMutex

	device string // followed cube; empty follows whichever reported last

	current         string
	pose            position.Pose
	havePose        bool
	orientation     orientation.Orientation
	haveOrientation bool
	lost            bool
	positions       uint64
	losses          uint64
}

// displaySnapshot is a lock-free copy of DisplayData for rendering.
type displaySnapshot struct {
	device          string
	pose            position.Pose
	havePose        bool
	orientation     orientation.Orientation
	haveOrientation bool
	lost            bool
	positions       uint64
	losses          uint64
}

func (d *DisplayData) follows(key string) bool {
	return d.device == "" || d.device == key
}

func (d *DisplayData) attach(dec *telemetry.Decoder) {
	dec.OnPositionUpdated(func(ev telemetry.PositionUpdated) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.follows(ev.DeviceKey) {
			return
		}
		d.current = ev.DeviceKey
		d.pose = ev.Pose
		d.havePose = true
		d.lost = false
		d.positions++
	})
	dec.OnOrientationUpdated(func(ev telemetry.OrientationUpdated) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.follows(ev.DeviceKey) {
			return
		}
		d.current = ev.DeviceKey
		d.orientation = ev.Orientation
		d.haveOrientation = true
	})
	dec.OnSignalLost(func(ev telemetry.SignalLost) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.follows(ev.DeviceKey) {
			return
		}
		d.current = ev.DeviceKey
		d.lost = true
		d.losses++
	})
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		device:          d.current,
		pose:            d.pose,
		havePose:        d.havePose,
		orientation:     d.orientation,
		haveOrientation: d.haveOrientation,
		lost:            d.lost,
		positions:       d.positions,
		losses:          d.losses,
	}
}

// discardSink drops samples; the display and console only need events.
type discardSink struct{}

func (discardSink) Append(string, sample.Sample) {}
func (discardSink) MarkSegmentEnd(string) bool   { return false }

// RunDisplay shows the followed cube's telemetry on an SSD1306 panel.
func RunDisplay(device string) error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: panel initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	link, err := openLink(cfg, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer link.Close()

	data := &DisplayData{device: device}
	dec := telemetry.NewDecoder(discardSink{})
	data.attach(dec)
	router := transport.NewRouter(dec, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := link.Listen(ctx, router.Handle, nil); err != nil {
			log.Printf("display: link error: %v", err)
			stop()
		}
	}()

	ticker := time.NewTicker(millis(cfg.DisplayUpdateInterval))
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			log.Println("display: shutting down")
			return nil
		case <-ticker.C:
			if err := updateDisplay(dev, data.snapshot()); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

func newDisplayImage(dev panel) *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(dev.Bounds())
}

func newDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

// displayLines is the text shown for one snapshot, one entry per row.
func displayLines(s displaySnapshot) []string {
	if !s.havePose && !s.haveOrientation && !s.lost {
		return []string{"", "Cube tracker", "Waiting..."}
	}

	state := "OK"
	if s.lost {
		state = "LOST"
	}
	lines := []string{fmt.Sprintf("%-12.12s %s", s.device, state)}

	if s.havePose {
		lines = append(lines, fmt.Sprintf("X:%3d Y:%3d A:%3d", s.pose.X, s.pose.Y, s.pose.Angle))
	} else {
		lines = append(lines, "X:--- Y:--- A:---")
	}
	if s.haveOrientation {
		o := s.orientation
		lines = append(lines, fmt.Sprintf("R:%4d P:%4d Y:%4d", o.Roll, o.Pitch, o.Yaw))
	} else {
		lines = append(lines, "R:---- P:---- Y:----")
	}
	lines = append(lines, fmt.Sprintf("pos %d lost %d", s.positions, s.losses))
	return lines
}

func renderDisplay(img *image1bit.VerticalLSB, s displaySnapshot) {
	drawer := newDrawer(img)
	for i, line := range displayLines(s) {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
}

func updateDisplay(dev panel, s displaySnapshot) error {
	img := newDisplayImage(dev)
	renderDisplay(img, s)
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev panel) error {
	img := newDisplayImage(dev)
	drawer := newDrawer(img)

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("toio tracker"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Looking for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("cubes"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
