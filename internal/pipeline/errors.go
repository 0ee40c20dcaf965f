package pipeline

import (
	"github.com/ppiankov/genesis/internal/chain"
	"github.com/rotisserie/eris"
)

// Error taxonomy. Callers match with eris.Is; raw provider text never
// appears in these errors.
var (
	// ErrConfiguration is returned before any work when config is unusable
	ErrConfiguration = eris.New("configuration error")

	// ErrInput marks a bad caller request
	ErrInput = eris.New("invalid input")

	// ErrInsufficientEvidence is returned when nothing usable was gathered
	ErrInsufficientEvidence = eris.New("insufficient evidence")

	ErrReasoningProvider = chain.ErrProviderFailed
	ErrNoUsableContent   = chain.ErrNoUsableContent
)

// IsInput reports whether err is a caller error
func IsInput(err error) bool {
	return eris.Is(err, ErrInput)
}
