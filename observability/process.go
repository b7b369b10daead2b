package observability

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// Snapshot is one sample of the server's own process health.
type Snapshot struct {
	Status string
	CPU    float64
	Memory float32
}

// Probe samples the running process the way ops watch any worker,
// through the platform process table rather than runtime internals.
type Probe struct {
	proc *process.Process
}

func NewProbe() (*Probe, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Probe{proc: p}, nil
}

func (p *Probe) Sample() (Snapshot, error) {
	status, err := p.proc.Status()
	if err != nil {
		return Snapshot{}, err
	}
	cpu, err := p.proc.CPUPercent()
	if err != nil {
		return Snapshot{}, err
	}
	ram, err := p.proc.MemoryPercent()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Status: status, CPU: cpu, Memory: ram}, nil
}
