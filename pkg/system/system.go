// SPDX-License-Identifier: GPL-2.0-or-later

// Package system sizes work to the host.
package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type cpuFunc func(logical bool) (int, error)
type ramFunc func() (*mem.VirtualMemoryStat, error)

// System .
type System struct {
	cpu cpuFunc
	ram ramFunc
}

// New returns System.
func New() *System {
	return &System{
		cpu: cpu.Counts,
		ram: mem.VirtualMemory,
	}
}

// Each worker holds a whole movie file plus
// its decoded frames and audio in memory.
const memoryPerFileByte = 3

// Workers returns how many movie files to decode in parallel. One
// worker per physical core, limited so that every worker can hold
// a file of maxFileSize in available memory. Always at least 1.
func (s *System) Workers(maxFileSize int64) int {
	workers, err := s.cpu(false)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}

	if maxFileSize <= 0 {
		return workers
	}

	ram, err := s.ram()
	if err != nil {
		return workers
	}

	fit := int(ram.Available / uint64(maxFileSize*memoryPerFileByte))
	if fit < workers {
		workers = fit
	}
	if workers < 1 {
		return 1
	}
	return workers
}
