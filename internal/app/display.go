// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/reaction_trainer/internal/config"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/trial"
)

// DisplayData holds the latest data for the OLED.
type DisplayData struct {
	mu sync.RWMutex

	lastReading reading.Reading
	haveReading bool

	lastTrial trial.Trial
	haveTrial bool

	summary trial.Summary
}

// RunDisplay drives a 128x64 SSD1306 OLED showing the live sensor
// value, the last trial result and the session statistics.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeTopics(client, data, cfg); err != nil {
		return err
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := DisplayData{
			lastReading: data.lastReading,
			haveReading: data.haveReading,
			lastTrial:   data.lastTrial,
			haveTrial:   data.haveTrial,
			summary:     data.summary,
		}
		data.mu.RUnlock()

		if err := updateDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func subscribeTopics(client mqtt.Client, data *DisplayData, cfg *config.Config) error {
	token := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rd reading.Reading
		if err := json.Unmarshal(msg.Payload(), &rd); err != nil {
			log.Printf("display: reading unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.lastReading = rd
		data.haveReading = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicReading)

	token = client.Subscribe(cfg.TopicTrial, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t trial.Trial
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("display: trial unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.lastTrial = t
		data.haveTrial = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTrial)

	token = client.Subscribe(cfg.TopicSession, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s trial.Summary
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: session unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.summary = s
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicSession)

	return nil
}

func updateDisplay(dev *ssd1306.Dev, data *DisplayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveReading {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Reaction"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("F: %5.2f N", data.lastReading.Value)))

	drawer.Dot = fixed.P(0, 26)
	if data.haveTrial {
		switch data.lastTrial.Status {
		case trial.StatusCompleted:
			drawer.DrawBytes([]byte(fmt.Sprintf("last %4d ms", data.lastTrial.Elapsed.Milliseconds())))
		case trial.StatusAborted:
			drawer.DrawBytes([]byte("last: miss"))
		}
	} else {
		drawer.DrawBytes([]byte("last:  --"))
	}

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("n=%d miss=%d", data.summary.Count, data.summary.Misses)))

	drawer.Dot = fixed.P(0, 52)
	if data.summary.Count > 0 {
		drawer.DrawBytes([]byte(fmt.Sprintf("avg %4d ms", data.summary.Mean.Milliseconds())))
	} else {
		drawer.DrawBytes([]byte("avg   -- ms"))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Reaction"))

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Trainer"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
