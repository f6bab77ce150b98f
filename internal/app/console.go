package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/reaction_trainer/internal/config"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/trial"
)

// RunConsole subscribes to the trainer's topics and prints live
// readings and trial results until interrupted.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	readingToken := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rd reading.Reading
		if err := json.Unmarshal(msg.Payload(), &rd); err != nil {
			log.Printf("console: reading unmarshal error: %v", err)
			return
		}
		fmt.Printf("[LIVE ] %6.2f %s\n", rd.Value, rd.Source)
	})
	readingToken.Wait()
	if readingToken.Error() != nil {
		return readingToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicReading)

	trialToken := client.Subscribe(cfg.TopicTrial, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t trial.Trial
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: trial unmarshal error: %v", err)
			return
		}
		switch t.Status {
		case trial.StatusCompleted:
			fmt.Printf("[TRIAL] reaction %4d ms\n", t.Elapsed.Milliseconds())
		case trial.StatusAborted:
			fmt.Printf("[TRIAL] miss (%s)\n", t.AbortReason)
		}
	})
	trialToken.Wait()
	if trialToken.Error() != nil {
		return trialToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTrial)

	sessionToken := client.Subscribe(cfg.TopicSession, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s trial.Summary
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: session unmarshal error: %v", err)
			return
		}
		fmt.Printf("[SESS ] n=%d misses=%d min=%dms max=%dms mean=%dms\n",
			s.Count, s.Misses, s.Min.Milliseconds(), s.Max.Milliseconds(), s.Mean.Milliseconds())
	})
	sessionToken.Wait()
	if sessionToken.Error() != nil {
		return sessionToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSession)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
