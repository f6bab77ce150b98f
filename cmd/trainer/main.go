// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/reaction_trainer/internal/app"
	"github.com/relabs-tech/reaction_trainer/internal/config"
)

func main() {
	configPath := flag.String("config", "./reaction_config.txt", "path to configuration file")
	threshold := flag.Float64("threshold", 0, "explicit trigger threshold, skips calibration")
	flag.Parse()

	log.Println("starting reaction trainer (sensor -> trials -> MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *threshold != 0 {
		config.Get().TriggerThreshold = *threshold
	}

	if err := app.RunTrainer(*configPath); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
