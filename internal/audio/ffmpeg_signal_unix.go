//go:build unix

package audio

import (
	"os"
	"syscall"
)

// ffmpeg is paused by suspending the process with SIGSTOP.
const pauseSupported = true

func suspendProcess(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

func continueProcess(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}

func interruptProcess(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
