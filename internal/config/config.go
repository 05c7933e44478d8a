// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Transport names accepted by TRANSPORT.
const (
	TransportMQTT   = "mqtt"
	TransportSerial = "serial"
)

// Config holds all application configuration values.
type Config struct {
	// Link to the cubes: "mqtt" (BLE gateway on a broker) or "serial" (BLE dongle)
	Transport string

	// MQTT
	MQTTBroker            string
	MQTTClientIDRecorder  string
	MQTTClientIDConsole   string
	MQTTClientIDSimulator string
	MQTTClientIDDisplay   string
	MQTTClientIDDrive     string
	TopicPrefix           string

	// Serial dongle
	SerialPort     string
	SerialBaudRate uint

	// Storage
	StorePath     string // SQLite file; empty keeps samples in memory
	FlushInterval int    // milliseconds

	// Replay
	ReplayTick    int // milliseconds
	TraceInterval int // milliseconds between move-to commands

	// Web Server
	WebServerPort int
	WebRoot       string

	// Mat and drawing surface
	MatTopLeftX     float64
	MatTopLeftY     float64
	MatBottomRightX float64
	MatBottomRightY float64
	MatOffsetX      float64 // registration offset added before scaling
	MatOffsetY      float64
	CanvasWidth     int
	CanvasHeight    int

	// Pen in effect for new samples
	PenColor     string
	PenAlpha     float64
	PenLineWidth float64

	// Scoring
	ScoreTolerance   float64
	ScoreTargetColor string

	// Display
	DisplayUpdateInterval int // milliseconds

	// Simulator
	SimDeviceKey string
	SimInterval  int // milliseconds
	SimLossEvery int // emit a position-missed frame every N frames, 0 disables
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the values used for keys missing from the file. They
// match the standard toio mat and the drawing app defaults.
func Default() *Config {
	return &Config{
		Transport:             TransportMQTT,
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDRecorder:  "cube-recorder",
		MQTTClientIDConsole:   "cube-console",
		MQTTClientIDSimulator: "cube-simulator",
		MQTTClientIDDisplay:   "cube-display",
		MQTTClientIDDrive:     "cube-drive",
		TopicPrefix:           "toio",
		SerialBaudRate:        115200,
		FlushInterval:         5000,
		ReplayTick:            50,
		TraceInterval:         500,
		WebServerPort:         8080,
		WebRoot:               "./web",
		MatTopLeftX:           90,
		MatTopLeftY:           130,
		MatBottomRightX:       410,
		MatBottomRightY:       370,
		MatOffsetX:            -90,
		MatOffsetY:            -140,
		CanvasWidth:           1440,
		CanvasHeight:          1080,
		PenColor:              "#000000",
		PenAlpha:              1,
		PenLineWidth:          3,
		ScoreTolerance:        50,
		ScoreTargetColor:      "#000000",
		DisplayUpdateInterval: 500,
		SimDeviceKey:          "cubeSim",
		SimInterval:           100,
		SimLossEvery:          50,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	case "TRANSPORT":
		c.Transport = strings.ToLower(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_SIMULATOR":
		c.MQTTClientIDSimulator = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_DRIVE":
		c.MQTTClientIDDrive = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.TrimSuffix(value, "/")

	// Serial dongle
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE: %w", err)
		}
		c.SerialBaudRate = uint(rate)

	// Storage
	case "STORE_PATH":
		c.StorePath = value
	case "FLUSH_INTERVAL":
		return setPositive(&c.FlushInterval, key, value)

	// Replay
	case "REPLAY_TICK":
		return setPositive(&c.ReplayTick, key, value)
	case "TRACE_INTERVAL":
		return setPositive(&c.TraceInterval, key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT: %w", err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port
	case "WEB_ROOT":
		c.WebRoot = value

	// Mat and drawing surface
	case "MAT_TOP_LEFT_X":
		return setFloat(&c.MatTopLeftX, key, value)
	case "MAT_TOP_LEFT_Y":
		return setFloat(&c.MatTopLeftY, key, value)
	case "MAT_BOTTOM_RIGHT_X":
		return setFloat(&c.MatBottomRightX, key, value)
	case "MAT_BOTTOM_RIGHT_Y":
		return setFloat(&c.MatBottomRightY, key, value)
	case "MAT_OFFSET_X":
		return setFloat(&c.MatOffsetX, key, value)
	case "MAT_OFFSET_Y":
		return setFloat(&c.MatOffsetY, key, value)
	case "CANVAS_WIDTH":
		return setPositive(&c.CanvasWidth, key, value)
	case "CANVAS_HEIGHT":
		return setPositive(&c.CanvasHeight, key, value)

	// Pen
	case "PEN_COLOR":
		c.PenColor = value
	case "PEN_ALPHA":
		return setFloat(&c.PenAlpha, key, value)
	case "PEN_LINE_WIDTH":
		return setFloat(&c.PenLineWidth, key, value)

	// Scoring
	case "SCORE_TOLERANCE":
		return setFloat(&c.ScoreTolerance, key, value)
	case "SCORE_TARGET_COLOR":
		c.ScoreTargetColor = value

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		return setPositive(&c.DisplayUpdateInterval, key, value)

	// Simulator
	case "SIM_DEVICE_KEY":
		c.SimDeviceKey = value
	case "SIM_INTERVAL":
		return setPositive(&c.SimInterval, key, value)
	case "SIM_LOSS_EVERY":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_LOSS_EVERY: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("SIM_LOSS_EVERY must be >= 0, got %d", n)
		}
		c.SimLossEvery = n

	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return nil
}

// setPositive parses a positive integer (intervals, sizes).
func setPositive(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, n)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

// validate checks that the values fit together.
func (c *Config) validate() error {
	switch c.Transport {
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required")
		}
		if c.TopicPrefix == "" {
			return fmt.Errorf("TOPIC_PREFIX is required")
		}
	case TransportSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required")
		}
		if c.SerialBaudRate == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required")
		}
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportMQTT, TransportSerial, c.Transport)
	}

	if c.MatBottomRightX <= c.MatTopLeftX || c.MatBottomRightY <= c.MatTopLeftY {
		return fmt.Errorf("mat bottom-right corner must be below and right of the top-left corner")
	}
	if !isHexColor(c.PenColor) {
		return fmt.Errorf("PEN_COLOR must be #rrggbb, got %q", c.PenColor)
	}
	if !isHexColor(c.ScoreTargetColor) {
		return fmt.Errorf("SCORE_TARGET_COLOR must be #rrggbb, got %q", c.ScoreTargetColor)
	}
	if c.PenAlpha < 0 || c.PenAlpha > 1 {
		return fmt.Errorf("PEN_ALPHA must be 0-1, got %g", c.PenAlpha)
	}
	if c.PenLineWidth <= 0 {
		return fmt.Errorf("PEN_LINE_WIDTH must be positive, got %g", c.PenLineWidth)
	}
	if c.ScoreTolerance < 0 {
		return fmt.Errorf("SCORE_TOLERANCE must be >= 0, got %g", c.ScoreTolerance)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 16, 32)
	return err == nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
