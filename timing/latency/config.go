package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the fixed latency of every functional unit, in cycles.
type TimingConfig struct {
	// AddLatency covers ADD, ADDI, SUB and the JALR target adder.
	// Default: 1 cycle.
	AddLatency uint64 `json:"add_latency"`

	// CompareLatency covers SLT, SLTI, SLTU, SLTIU and branch conditions.
	// Default: 1 cycle.
	CompareLatency uint64 `json:"compare_latency"`

	// LogicLatency covers AND, OR, XOR and their immediate forms.
	// Default: 1 cycle.
	LogicLatency uint64 `json:"logic_latency"`

	// ShiftLatency covers SLL, SRL, SRA and their immediate forms.
	// Default: 1 cycle.
	ShiftLatency uint64 `json:"shift_latency"`

	// LoadLatency is the memory read latency once a load is released.
	// Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the memory write latency once a store is committed.
	// Default: 3 cycles.
	StoreLatency uint64 `json:"store_latency"`
}

// DefaultTimingConfig returns the reference configuration.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		AddLatency:     1,
		CompareLatency: 1,
		LogicLatency:   1,
		ShiftLatency:   1,
		LoadLatency:    3,
		StoreLatency:   3,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	fields := []struct {
		name  string
		value uint64
	}{
		{"add_latency", c.AddLatency},
		{"compare_latency", c.CompareLatency},
		{"logic_latency", c.LogicLatency},
		{"shift_latency", c.ShiftLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
	}

	for _, f := range fields {
		if f.value == 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}

	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
