package mic

import (
	"sync"

	"github.com/vocalmind/vocalmind/internal/audio"
)

// DummyCapturer is a Capturer with no hardware behind it, useful for the
// "dummy" audio-recorder profile variant and for tests. Frames pushed via
// Feed are delivered to the source only while the capturer is started.
type DummyCapturer struct {
	mu      sync.Mutex
	emit    func(audio.Frame)
	started bool
	failing bool
}

// Start implements Capturer.
func (d *DummyCapturer) Start(emit func(audio.Frame), onError func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emit = emit
	d.started = true
	return nil
}

// Stop implements Capturer.
func (d *DummyCapturer) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.emit = nil
	return nil
}

// Feed delivers a frame as if it had come from hardware. A no-op once the
// capturer is stopped.
func (d *DummyCapturer) Feed(f audio.Frame) {
	d.mu.Lock()
	emit, started := d.emit, d.started
	d.mu.Unlock()
	if started && emit != nil {
		emit(f)
	}
}
