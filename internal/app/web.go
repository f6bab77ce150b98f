// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/reaction_trainer/internal/config"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/trial"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsEvent wraps a payload with its kind for the live feed.
type wsEvent struct {
	Kind string          `json:"kind"` // "reading", "trial" or "session"
	Data json.RawMessage `json:"data"`
}

type wsHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newWSHub() *wsHub {
	return &wsHub{conns: make(map[*websocket.Conn]bool)}
}

func (h *wsHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *wsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.Close()
}

// broadcast pushes one event to every connected client, dropping
// clients whose write fails.
func (h *wsHub) broadcast(kind string, payload []byte) {
	ev := wsEvent{Kind: kind, Data: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteJSON(ev); err != nil {
			log.Printf("web: websocket write error: %v", err)
			delete(h.conns, c)
			c.Close()
		}
	}
}

// RunWeb serves the dashboard: JSON API for the latest state plus a
// websocket live feed of readings and trial results.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu          sync.RWMutex
		lastReading reading.Reading
		haveReading bool
		lastTrial   trial.Trial
		haveTrial   bool
		summary     trial.Summary
	)

	hub := newWSHub()

	// 1) Connect to the MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Mirror the trainer's topics into local state and the live feed
	subscribe := func(topic, kind string, update func([]byte) error) error {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := update(msg.Payload()); err != nil {
				log.Printf("web: %s unmarshal error: %v", kind, err)
				return
			}
			hub.broadcast(kind, msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", topic)
		return nil
	}

	if err := subscribe(cfg.TopicReading, "reading", func(p []byte) error {
		var rd reading.Reading
		if err := json.Unmarshal(p, &rd); err != nil {
			return err
		}
		mu.Lock()
		lastReading, haveReading = rd, true
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicTrial, "trial", func(p []byte) error {
		var t trial.Trial
		if err := json.Unmarshal(p, &t); err != nil {
			return err
		}
		mu.Lock()
		lastTrial, haveTrial = t, true
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.TopicSession, "session", func(p []byte) error {
		var s trial.Summary
		if err := json.Unmarshal(p, &s); err != nil {
			return err
		}
		mu.Lock()
		summary = s
		mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	// 3) JSON API endpoints
	http.HandleFunc("/api/reading", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveReading {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastReading); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/trial", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveTrial {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastTrial); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket live feed
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		hub.add(conn)
		log.Printf("web: websocket client connected from %s", r.RemoteAddr)

		// Drain client messages so closure is detected.
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
