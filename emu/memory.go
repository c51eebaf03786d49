package emu

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// DefaultMemorySize is the size of the flat address space, 1 MiB.
const DefaultMemorySize uint32 = 1 << 20

// Memory is a flat, byte-addressable little-endian memory. Addresses wrap
// modulo the size, so any 32-bit address is a valid access. Unaligned
// half-word and word accesses are supported.
type Memory struct {
	data []byte
	mask uint32
}

// NewMemory creates a memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	m, _ := NewMemoryWithSize(DefaultMemorySize)
	return m
}

// NewMemoryWithSize creates a memory of the given size, which must be a
// non-zero power of two.
func NewMemoryWithSize(size uint32) (*Memory, error) {
	if size == 0 || bits.OnesCount32(size) != 1 {
		return nil, fmt.Errorf("memory size %d is not a power of two", size)
	}

	return &Memory{
		data: make([]byte, size),
		mask: size - 1,
	}, nil
}

// Size returns the number of bytes in the memory.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.data[addr&m.mask]
}

// Read16 reads a little-endian half word.
func (m *Memory) Read16(addr uint32) uint16 {
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	a := addr & m.mask
	if a+4 <= uint32(len(m.data)) {
		return binary.LittleEndian.Uint32(m.data[a:])
	}

	return uint32(m.Read16(addr)) | uint32(m.Read16(addr+2))<<16
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.data[addr&m.mask] = value
}

// Write16 writes a little-endian half word.
func (m *Memory) Write16(addr uint32, value uint16) {
	m.Write8(addr, uint8(value))
	m.Write8(addr+1, uint8(value>>8))
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	a := addr & m.mask
	if a+4 <= uint32(len(m.data)) {
		binary.LittleEndian.PutUint32(m.data[a:], value)
		return
	}

	m.Write16(addr, uint16(value))
	m.Write16(addr+2, uint16(value>>16))
}

// LoadProgram copies a byte image into memory starting at addr.
func (m *Memory) LoadProgram(addr uint32, program []byte) {
	for i, b := range program {
		m.Write8(addr+uint32(i), b)
	}
}

// Clone returns an independent copy of the memory.
func (m *Memory) Clone() *Memory {
	data := make([]byte, len(m.data))
	copy(data, m.data)

	return &Memory{data: data, mask: m.mask}
}
