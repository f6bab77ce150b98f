package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates no serial device matched the saved identifier.
var ErrNotFound = errors.New("device: not found")

// Port is one candidate serial device. ID is the stable identifier
// from /dev/serial/by-id when the platform provides one, otherwise the
// device path itself.
type Port struct {
	Path string
	ID   string
}

// Discover lists candidate serial devices: /dev/serial/by-id entries
// first (stable across replugs), then bare /dev/ttyACM* and
// /dev/ttyUSB* nodes not already covered.
func Discover() ([]Port, error) {
	return discoverAt("/dev")
}

// FindByID resolves a previously saved identifier to a live port.
func FindByID(id string) (Port, error) {
	ports, err := Discover()
	if err != nil {
		return Port{}, err
	}
	for _, p := range ports {
		if p.ID == id {
			return p, nil
		}
	}
	return Port{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func discoverAt(devRoot string) ([]Port, error) {
	var ports []Port
	seen := make(map[string]bool)

	byID := filepath.Join(devRoot, "serial", "by-id")
	if entries, err := os.ReadDir(byID); err == nil {
		for _, e := range entries {
			link := filepath.Join(byID, e.Name())
			path, err := filepath.EvalSymlinks(link)
			if err != nil {
				continue
			}
			ports = append(ports, Port{Path: path, ID: e.Name()})
			seen[path] = true
		}
	}

	entries, err := os.ReadDir(devRoot)
	if err != nil {
		return nil, fmt.Errorf("device: scan %s: %w", devRoot, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "ttyACM") && !strings.HasPrefix(name, "ttyUSB") {
			continue
		}
		path := filepath.Join(devRoot, name)
		if seen[path] {
			continue
		}
		ports = append(ports, Port{Path: path, ID: path})
	}

	return ports, nil
}
