//go:build headless

package device

// OtoPlayer is a discarding stub for headless builds (no host audio
// backend available).
type OtoPlayer struct {
	started bool
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func (op *OtoPlayer) SetupStream(freq, channels int, source func([]byte) (int, error)) {}

func (op *OtoPlayer) Start() { op.started = true }
func (op *OtoPlayer) Stop()  { op.started = false }
func (op *OtoPlayer) Close() { op.started = false }
