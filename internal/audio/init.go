package audio

import (
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// The PortAudio library is only touched by the microphone source and the
// device listing; clip and synth runs never initialize it.
var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
)

var errNotInitialized = errors.New("portaudio not initialized")

// Initialize wraps portaudio.Initialize with sync.Once so multiple callers are safe.
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// Terminate balances a successful Initialize. It is a no-op when Initialize
// was never called or failed.
func Terminate() {
	termOnce.Do(func() {
		initOnce.Do(func() { initErr = errNotInitialized })
		if initErr != nil {
			return
		}
		_ = portaudio.Terminate()
	})
}
