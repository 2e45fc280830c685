//go:build !unix

package audio

import (
	"errors"
	"os"
)

const pauseSupported = false

var errNoSignals = errors.New("process signals not supported on this platform")

func suspendProcess(p *os.Process) error {
	return errNoSignals
}

func continueProcess(p *os.Process) error {
	return errNoSignals
}

// interruptProcess fails so Stop falls back to Kill.
func interruptProcess(p *os.Process) error {
	return errNoSignals
}
