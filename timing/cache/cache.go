// Package cache models data-cache timing using Akita cache components.
//
// The cache keeps tags only. Memory stays the single copy of the data, so a
// cache changes how long loads and stores take but never what they read or
// write.
package cache

import (
	"fmt"
	"math/bits"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency"`
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64 `json:"miss_latency"`
}

// DefaultConfig returns a small L1 data cache: 4KB, 4-way, 32B lines.
func DefaultConfig() Config {
	return Config{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     32,
		HitLatency:    2,
		MissLatency:   10,
	}
}

// Validate checks that the geometry divides evenly into power-of-two sets
// and that both latencies are non-zero.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || bits.OnesCount(uint(c.BlockSize)) != 1 {
		return fmt.Errorf("block_size must be a power of two")
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("size must be a multiple of associativity * block_size")
	}
	if c.HitLatency == 0 || c.MissLatency < c.HitLatency {
		return fmt.Errorf("need 0 < hit_latency <= miss_latency")
	}
	return nil
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Writebacks uint64 `json:"writebacks"`
}

// HitRate returns hits over accesses.
func (s Statistics) HitRate() float64 {
	if s.Reads+s.Writes == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Reads+s.Writes)
}

// Cache is a write-back, write-allocate tag store with LRU replacement.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func (c *Cache) blockAddr(addr uint32) uint64 {
	return uint64(addr) &^ uint64(c.config.BlockSize-1)
}

// Access looks up the line holding addr, allocating it on a miss, and
// returns the number of cycles the access takes.
func (c *Cache) Access(addr uint32, write bool) uint64 {
	if write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if write {
			block.IsDirty = true
		}
		return c.config.HitLatency
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = write
	c.directory.Visit(victim)

	return c.config.MissLatency
}

// Contains reports whether the line holding addr is cached, without
// touching the replacement state.
func (c *Cache) Contains(addr uint32) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Reset invalidates all cache lines and clears the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
