package notify

import (
	"fmt"
	"sync"

	"github.com/maxpert/groupbus/cfg"
)

// TransportFactory creates a Bus from the notify configuration
type TransportFactory func(cfg.NotifyConfiguration) (Bus, error)

var (
	transportFactories = make(map[string]TransportFactory)
	factoryMu          sync.RWMutex
)

func init() {
	RegisterTransport(cfg.TransportLocal, func(c cfg.NotifyConfiguration) (Bus, error) {
		return NewHubWithBuffer(c.SignalBuffer), nil
	})
	RegisterTransport(cfg.TransportNATS, func(c cfg.NotifyConfiguration) (Bus, error) {
		if c.NatsURL == "" {
			return nil, fmt.Errorf("nats transport requires nats_url")
		}
		return NewNatsBus(c.NatsURL, c.SubjectPrefix, c.SignalBuffer)
	})
}

// RegisterTransport registers a bus factory for a transport name
func RegisterTransport(transport string, factory TransportFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	transportFactories[transport] = factory
}

// NewBus creates a bus for the configured transport
func NewBus(config cfg.NotifyConfiguration) (Bus, error) {
	factoryMu.RLock()
	factory, exists := transportFactories[config.Transport]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown notify transport: %s", config.Transport)
	}

	return factory(config)
}
