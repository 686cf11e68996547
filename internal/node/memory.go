package node

import "github.com/shirou/gopsutil/v3/mem"

// MemoryProbe reports free memory in bytes.
type MemoryProbe interface {
	FreeMemory() uint64
}

// SystemMemory reads available system memory. A failed read reports 0.
type SystemMemory struct{}

// FreeMemory implements MemoryProbe.
func (SystemMemory) FreeMemory() uint64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.Available
}

// FixedMemory is a MemoryProbe returning a constant, for tests and
// the fake sensor mode.
type FixedMemory uint64

// FreeMemory implements MemoryProbe.
func (m FixedMemory) FreeMemory() uint64 {
	return uint64(m)
}
