//go:build !headless

package device

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer adapts oto/v3 to the Player interface the audio device
// expects: a context opened once, a player created per stream setup,
// and Read pulling from whatever source function the device last
// registered.
type OtoPlayer struct {
	ctx     *oto.Context
	player  *oto.Player
	source  func([]byte) (int, error)
	started bool
	mu      sync.Mutex
}

// NewOtoPlayer opens an oto context at sampleRate, blocking until the
// host audio backend is ready.
func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &OtoPlayer{ctx: ctx}, nil
}

func (op *OtoPlayer) SetupStream(freq, channels int, source func([]byte) (int, error)) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.source = source
	op.player = op.ctx.NewPlayer(op)
}

// Read implements io.Reader for oto's player, delegating to whatever
// source SetupStream last installed.
func (op *OtoPlayer) Read(p []byte) (int, error) {
	op.mu.Lock()
	source := op.source
	op.mu.Unlock()
	if source == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	return source(p)
}

func (op *OtoPlayer) Start() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
}
