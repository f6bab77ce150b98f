package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Device / serial
	SerialPort     string
	SerialBaudRate uint
	DeviceID       string // stable identifier saved between sessions
	SensorProtocol string // "spike", "nmea" or "mock"

	// Trigger
	TriggerThreshold float64 // explicit override; 0 means calibrate at startup
	TriggerDirection string  // "rising" or "falling"
	TriggerDebounce  int     // consecutive crossing samples to confirm

	// Calibration
	CalibrationSamples    int
	CalibrationMinSamples int
	CalibrationMargin     float64
	CalibrationTimeout    int // milliseconds

	// Trials
	TrialMaxWait int // milliseconds to wait for a reaction

	// Reaction input
	InputSource   string // "stdin" or "gpio"
	GPIOButtonPin string

	// MQTT
	MQTTBroker          string
	MQTTClientIDTrainer string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicReading string
	TopicTrial   string
	TopicSession string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string // empty selects the first available bus
	DisplayUpdateInterval int    // milliseconds
}

// Package-level unexported variables for the config singleton.
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the built-in configuration; a config file overrides
// individual keys.
func Default() *Config {
	return &Config{
		SerialBaudRate:        115200,
		SensorProtocol:        "spike",
		TriggerDirection:      "rising",
		TriggerDebounce:       2,
		CalibrationSamples:    30,
		CalibrationMinSamples: 10,
		CalibrationMargin:     5,
		CalibrationTimeout:    5000,
		TrialMaxWait:          5000,
		InputSource:           "stdin",
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDTrainer:   "reaction-trainer",
		MQTTClientIDConsole:   "reaction-console",
		MQTTClientIDWeb:       "reaction-web",
		MQTTClientIDDisplay:   "reaction-display",
		TopicReading:          "reaction/reading",
		TopicTrial:            "reaction/trial",
		TopicSession:          "reaction/session",
		WebServerPort:         8080,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of the defaults and returns
// a Config struct.
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Device / serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = uint(rate)
	case "DEVICE_ID":
		c.DeviceID = value
	case "SENSOR_PROTOCOL":
		c.SensorProtocol = value

	// Trigger
	case "TRIGGER_THRESHOLD":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TRIGGER_THRESHOLD %q: %w", value, err)
		}
		c.TriggerThreshold = v
	case "TRIGGER_DIRECTION":
		c.TriggerDirection = value
	case "TRIGGER_DEBOUNCE":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TRIGGER_DEBOUNCE %q: %w", value, err)
		}
		if v < 1 {
			return fmt.Errorf("TRIGGER_DEBOUNCE must be >= 1, got %d", v)
		}
		c.TriggerDebounce = v

	// Calibration
	case "CALIBRATION_SAMPLES":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_SAMPLES %q: %w", value, err)
		}
		c.CalibrationSamples = v
	case "CALIBRATION_MIN_SAMPLES":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_MIN_SAMPLES %q: %w", value, err)
		}
		c.CalibrationMinSamples = v
	case "CALIBRATION_MARGIN":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_MARGIN %q: %w", value, err)
		}
		c.CalibrationMargin = v
	case "CALIBRATION_TIMEOUT_MS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CALIBRATION_TIMEOUT_MS %q: %w", value, err)
		}
		c.CalibrationTimeout = v

	// Trials
	case "TRIAL_MAX_WAIT_MS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TRIAL_MAX_WAIT_MS %q: %w", value, err)
		}
		c.TrialMaxWait = v

	// Reaction input
	case "INPUT_SOURCE":
		c.InputSource = value
	case "GPIO_BUTTON_PIN":
		c.GPIOButtonPin = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRAINER":
		c.MQTTClientIDTrainer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_READING":
		c.TopicReading = value
	case "TOPIC_TRIAL":
		c.TopicTrial = value
	case "TOPIC_SESSION":
		c.TopicSession = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = v

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.SensorProtocol {
	case "spike", "nmea", "mock":
	default:
		return fmt.Errorf("SENSOR_PROTOCOL must be spike, nmea or mock, got %q", c.SensorProtocol)
	}
	if c.TriggerDirection != "rising" && c.TriggerDirection != "falling" {
		return fmt.Errorf("TRIGGER_DIRECTION must be rising or falling, got %q", c.TriggerDirection)
	}
	if c.CalibrationMinSamples < 1 {
		return fmt.Errorf("CALIBRATION_MIN_SAMPLES must be >= 1, got %d", c.CalibrationMinSamples)
	}
	if c.CalibrationSamples < c.CalibrationMinSamples {
		return fmt.Errorf("CALIBRATION_SAMPLES (%d) must be >= CALIBRATION_MIN_SAMPLES (%d)",
			c.CalibrationSamples, c.CalibrationMinSamples)
	}
	switch c.InputSource {
	case "stdin":
	case "gpio":
		if c.GPIOButtonPin == "" {
			return fmt.Errorf("GPIO_BUTTON_PIN is required when INPUT_SOURCE=gpio")
		}
	default:
		return fmt.Errorf("INPUT_SOURCE must be stdin or gpio, got %q", c.InputSource)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

// Save writes the configuration back out so the selected device and
// the active threshold survive to the next session.
func (c *Config) Save(configPath string) error {
	var b strings.Builder
	b.WriteString("# reaction_trainer configuration\n")
	fmt.Fprintf(&b, "SERIAL_PORT=%s\n", c.SerialPort)
	fmt.Fprintf(&b, "SERIAL_BAUD_RATE=%d\n", c.SerialBaudRate)
	fmt.Fprintf(&b, "DEVICE_ID=%s\n", c.DeviceID)
	fmt.Fprintf(&b, "SENSOR_PROTOCOL=%s\n", c.SensorProtocol)
	fmt.Fprintf(&b, "TRIGGER_THRESHOLD=%s\n", strconv.FormatFloat(c.TriggerThreshold, 'g', -1, 64))
	fmt.Fprintf(&b, "TRIGGER_DIRECTION=%s\n", c.TriggerDirection)
	fmt.Fprintf(&b, "TRIGGER_DEBOUNCE=%d\n", c.TriggerDebounce)
	fmt.Fprintf(&b, "CALIBRATION_SAMPLES=%d\n", c.CalibrationSamples)
	fmt.Fprintf(&b, "CALIBRATION_MIN_SAMPLES=%d\n", c.CalibrationMinSamples)
	fmt.Fprintf(&b, "CALIBRATION_MARGIN=%s\n", strconv.FormatFloat(c.CalibrationMargin, 'g', -1, 64))
	fmt.Fprintf(&b, "CALIBRATION_TIMEOUT_MS=%d\n", c.CalibrationTimeout)
	fmt.Fprintf(&b, "TRIAL_MAX_WAIT_MS=%d\n", c.TrialMaxWait)
	fmt.Fprintf(&b, "INPUT_SOURCE=%s\n", c.InputSource)
	if c.GPIOButtonPin != "" {
		fmt.Fprintf(&b, "GPIO_BUTTON_PIN=%s\n", c.GPIOButtonPin)
	}
	fmt.Fprintf(&b, "MQTT_BROKER=%s\n", c.MQTTBroker)
	fmt.Fprintf(&b, "MQTT_CLIENT_ID_TRAINER=%s\n", c.MQTTClientIDTrainer)
	fmt.Fprintf(&b, "MQTT_CLIENT_ID_CONSOLE=%s\n", c.MQTTClientIDConsole)
	fmt.Fprintf(&b, "MQTT_CLIENT_ID_WEB=%s\n", c.MQTTClientIDWeb)
	fmt.Fprintf(&b, "MQTT_CLIENT_ID_DISPLAY=%s\n", c.MQTTClientIDDisplay)
	fmt.Fprintf(&b, "TOPIC_READING=%s\n", c.TopicReading)
	fmt.Fprintf(&b, "TOPIC_TRIAL=%s\n", c.TopicTrial)
	fmt.Fprintf(&b, "TOPIC_SESSION=%s\n", c.TopicSession)
	fmt.Fprintf(&b, "WEB_SERVER_PORT=%d\n", c.WebServerPort)
	if c.DisplayI2CBus != "" {
		fmt.Fprintf(&b, "DISPLAY_I2C_BUS=%s\n", c.DisplayI2CBus)
	}
	fmt.Fprintf(&b, "DISPLAY_UPDATE_INTERVAL=%d\n", c.DisplayUpdateInterval)

	if err := os.WriteFile(configPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// InitGlobal initializes the global configuration from file. A missing
// file is not an error: the defaults apply and the file is created on
// the first Save.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
