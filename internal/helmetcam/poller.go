package helmetcam

import (
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/cctv/pkg/core"
)

// Poller runs AutoToggleTick for every known entity on a fixed interval.
type Poller struct {
	machine  *Machine
	interval time.Duration
	logger   *slog.Logger

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

func NewPoller(machine *Machine, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		machine:  machine,
		interval: interval,
		logger:   logger.With("component", "helmetcam.poller"),
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the poll loop is running
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Tick evaluates every entity once. Refs that only remain in the machine's state
// are visited too, so vanished wearers get torn down.
func (p *Poller) Tick() {
	seen := make(map[core.EntityRef]struct{})
	for _, ref := range p.machine.entities.Refs() {
		seen[ref] = struct{}{}
		p.machine.AutoToggleTick(ref)
	}
	for _, ref := range p.machine.Tracked() {
		if _, ok := seen[ref]; !ok {
			p.machine.AutoToggleTick(ref)
		}
	}
}

// Start starts the poll goroutine
func (p *Poller) Start() error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Debug("Starting helmet cam poller", "interval", p.interval)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.Tick()
			}
		}
	}()

	return nil
}

// Stop stops the poll goroutine
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		close(p.stopChan)
		p.isRunning = false
	}
}
