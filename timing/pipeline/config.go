package pipeline

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
)

// MinBusCapacity is the number of messages the units can produce in one
// cycle: four arithmetic write-backs, the address and data of a dispatched
// store, one load write-back, one store completion and one commit message.
const MinBusCapacity = 9

// CoreConfig sizes the fixed-capacity structures of the core.
type CoreConfig struct {
	// ROBSize is the number of reorder-buffer entries. Default: 32.
	ROBSize int `json:"rob_size"`

	// RSSize is the number of slots per reservation-station bank.
	// Default: 8, at most 64.
	RSSize int `json:"rs_size"`

	// LoadQueueSize is the load queue depth. Default: 8.
	LoadQueueSize int `json:"load_queue_size"`

	// StoreQueueSize is the store queue depth. Default: 8.
	StoreQueueSize int `json:"store_queue_size"`

	// InstQueueSize is the fetched-instruction queue depth. Default: 16.
	InstQueueSize int `json:"inst_queue_size"`

	// BusCapacity is the maximum number of bus messages per cycle.
	// Default: 9.
	BusCapacity int `json:"bus_capacity"`

	// MemorySize is the size of the flat memory in bytes. Must be a power
	// of two. Default: 1 MiB.
	MemorySize uint32 `json:"memory_size"`
}

// DefaultCoreConfig returns the reference sizes.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		ROBSize:        32,
		RSSize:         8,
		LoadQueueSize:  8,
		StoreQueueSize: 8,
		InstQueueSize:  16,
		BusCapacity:    MinBusCapacity,
		MemorySize:     1 << 20,
	}
}

// LoadCoreConfig reads a CoreConfig from a JSON file. Keys missing from the
// file keep their default values.
func LoadCoreConfig(path string) (CoreConfig, error) {
	config := DefaultCoreConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read core config file: %w", err)
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse core config: %w", err)
	}

	return config, nil
}

// Validate checks the sizes.
func (c CoreConfig) Validate() error {
	if c.ROBSize <= 0 {
		return fmt.Errorf("rob_size must be > 0")
	}
	if c.RSSize <= 0 || c.RSSize > MaxSlots {
		return fmt.Errorf("rs_size must be in 1..%d", MaxSlots)
	}
	if c.LoadQueueSize <= 0 {
		return fmt.Errorf("load_queue_size must be > 0")
	}
	if c.StoreQueueSize <= 0 {
		return fmt.Errorf("store_queue_size must be > 0")
	}
	if c.InstQueueSize <= 0 {
		return fmt.Errorf("inst_queue_size must be > 0")
	}
	if c.BusCapacity < MinBusCapacity {
		return fmt.Errorf("bus_capacity must be >= %d", MinBusCapacity)
	}
	if c.MemorySize == 0 || bits.OnesCount32(c.MemorySize) != 1 {
		return fmt.Errorf("memory_size must be a power of two")
	}
	return nil
}
