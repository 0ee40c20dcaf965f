package chain

import "github.com/rotisserie/eris"

var (
	// ErrProviderFailed marks a reasoning call that returned no text
	ErrProviderFailed = eris.New("reasoning provider failure")

	// ErrNoUsableContent marks a response with no structured object in it
	ErrNoUsableContent = eris.New("no usable content")
)
