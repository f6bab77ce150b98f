// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/reaction_trainer/internal/config"
	"github.com/relabs-tech/reaction_trainer/internal/device"
	"github.com/relabs-tech/reaction_trainer/internal/input"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/sensors"
	"github.com/relabs-tech/reaction_trainer/internal/trial"
	"github.com/relabs-tech/reaction_trainer/internal/trigger"
)

// rearmDelay gives the rig a moment to settle between trials so a
// still-pressed sensor does not immediately re-trigger.
const rearmDelay = time.Second

// RunTrainer runs the calibrate-arm-react session until the user
// interrupts or the device disconnects. The selected device and the
// active threshold are written back to configPath on the way out.
func RunTrainer(configPath string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- sensor channel ----
	src, closeSrc, err := openSensor(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	// ---- MQTT display sink ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTrainer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("trainer: connected to MQTT broker at %s", cfg.MQTTBroker)

	publish := func(topic string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("trainer: json marshal error (%s): %v", topic, err)
			return
		}
		client.Publish(topic, 0, true, payload)
	}

	// ---- threshold ----
	direction, err := trigger.ParseDirection(cfg.TriggerDirection)
	if err != nil {
		return err
	}

	var threshold trigger.Threshold
	if cfg.TriggerThreshold != 0 {
		threshold = trigger.Threshold{Value: cfg.TriggerThreshold, Direction: direction}
		log.Printf("trainer: using configured threshold %.2f (%s)", threshold.Value, threshold.Direction)
	} else {
		threshold, err = calibrate(ctx, src, cfg, direction)
		if err != nil {
			return err
		}
	}

	// ---- reaction input ----
	in, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	// ---- trial loop ----
	detector := trigger.NewDetector(threshold, cfg.TriggerDebounce)
	recorder := trial.NewRecorder()
	runner := &trial.Runner{
		Timer:    trial.NewTimer(),
		Source:   src,
		Detector: detector,
		Events:   in.Events(),
		MaxWait:  time.Duration(cfg.TrialMaxWait) * time.Millisecond,
		OnReading: func(rd reading.Reading) {
			publish(cfg.TopicReading, rd)
		},
	}

	log.Println("trainer: session started, react when the stimulus fires; CTRL+C to finish")

	sessionErr := runTrials(ctx, runner, recorder, publish, cfg)

	summary := recorder.Summary()
	publish(cfg.TopicSession, summary)
	log.Printf("trainer: session finished: %d trials, %d misses, min=%s max=%s mean=%s",
		summary.Count, summary.Misses, summary.Min, summary.Max, summary.Mean)

	// Persist the device and threshold for the next session.
	cfg.TriggerThreshold = threshold.Value
	cfg.TriggerDirection = threshold.Direction.String()
	if err := cfg.Save(configPath); err != nil {
		log.Printf("trainer: could not save configuration: %v", err)
	} else {
		log.Printf("trainer: configuration saved to %s", configPath)
	}

	return sessionErr
}

func runTrials(ctx context.Context, runner *trial.Runner, recorder *trial.Recorder,
	publish func(string, any), cfg *config.Config) error {

	for ctx.Err() == nil {
		t, err := runner.Run(ctx)
		if err != nil {
			if errors.Is(err, sensors.ErrConnectionLost) {
				log.Printf("trainer: device disconnected, session over: %v", err)
				return err
			}
			return err
		}

		switch t.Status {
		case trial.StatusCompleted:
			if err := recorder.Record(t); err != nil {
				return err
			}
			publish(cfg.TopicTrial, t)
			publish(cfg.TopicSession, recorder.Summary())
			log.Printf("trainer: reaction in %d ms", t.Elapsed.Milliseconds())

		case trial.StatusAborted:
			switch t.AbortReason {
			case trial.AbortTimeout:
				recorder.RecordMiss(t)
				publish(cfg.TopicTrial, t)
				log.Printf("trainer: no reaction within %d ms, trial discarded", cfg.TrialMaxWait)
			case trial.AbortUser:
				log.Println("trainer: session aborted by user")
				return nil
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(rearmDelay):
		}
	}
	return nil
}

func calibrate(ctx context.Context, src sensors.Source, cfg *config.Config, direction trigger.Direction) (trigger.Threshold, error) {
	opts := trigger.CalibrateOptions{
		Samples:    cfg.CalibrationSamples,
		MinSamples: cfg.CalibrationMinSamples,
		Margin:     cfg.CalibrationMargin,
		Direction:  direction,
		Timeout:    time.Duration(cfg.CalibrationTimeout) * time.Millisecond,
	}

	log.Printf("trainer: calibrating threshold over %d baseline samples, keep the sensor idle", opts.Samples)

	const attempts = 3
	for attempt := 1; ; attempt++ {
		threshold, err := trigger.Calibrate(ctx, src, opts)
		if err == nil {
			log.Printf("trainer: calibrated threshold %.2f (%s)", threshold.Value, threshold.Direction)
			return threshold, nil
		}
		if errors.Is(err, trigger.ErrInsufficientSamples) && attempt < attempts {
			log.Printf("trainer: calibration attempt %d/%d failed: %v", attempt, attempts, err)
			continue
		}
		return trigger.Threshold{}, fmt.Errorf("calibration failed: %w", err)
	}
}

// openSensor resolves the device and opens the sensor channel for the
// configured protocol.
func openSensor(cfg *config.Config) (sensors.Source, func() error, error) {
	if cfg.SensorProtocol == sensors.ProtocolMock {
		log.Println("trainer: using mock sensor source")
		return sensors.NewMockSource(50 * time.Millisecond), func() error { return nil }, nil
	}

	port := cfg.SerialPort
	if cfg.DeviceID != "" {
		if p, err := device.FindByID(cfg.DeviceID); err == nil {
			port = p.Path
			log.Printf("trainer: found saved device %s at %s", cfg.DeviceID, p.Path)
		} else {
			log.Printf("trainer: saved device not available: %v", err)
			port = ""
		}
	}

	if port == "" {
		ports, err := device.Discover()
		if err != nil {
			return nil, nil, err
		}
		if len(ports) == 0 {
			return nil, nil, fmt.Errorf("no serial devices found, is the hub connected?")
		}
		for i, p := range ports {
			log.Printf("trainer: device %d: %s (%s)", i+1, p.Path, p.ID)
		}
		port = ports[0].Path
		cfg.DeviceID = ports[0].ID
		log.Printf("trainer: selected %s", port)
	}
	cfg.SerialPort = port

	channel, err := sensors.Open(sensors.Options{
		Port:     port,
		BaudRate: cfg.SerialBaudRate,
		Protocol: cfg.SensorProtocol,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("trainer: serial port opened on %s at %d baud (%s)", port, cfg.SerialBaudRate, cfg.SensorProtocol)
	return channel, channel.Close, nil
}

func openInput(cfg *config.Config) (input.Source, error) {
	switch cfg.InputSource {
	case "gpio":
		log.Printf("trainer: reaction input on GPIO pin %s", cfg.GPIOButtonPin)
		return input.NewGPIOButton(cfg.GPIOButtonPin)
	default:
		log.Println("trainer: reaction input on stdin, press ENTER to react")
		return input.NewStdinSource(), nil
	}
}
