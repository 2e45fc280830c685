package play

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Player plays recorded answers with the first audio player found on PATH.
type Player struct {
	players  []string
	lookPath func(string) (string, error)
	out      io.Writer
}

func New(out io.Writer) *Player {
	if out == nil {
		out = io.Discard
	}
	return &Player{
		// in order of preference
		players:  []string{"mpv", "ffplay", "vlc", "aplay"},
		lookPath: exec.LookPath,
		out:      out,
	}
}

// PlayFile plays a saved recording and blocks until playback ends or ctx
// is cancelled.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %s", path)
	}

	player, err := p.findAudioPlayer(path)
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	fmt.Fprintf(p.out, "Playing: %s\n", path)

	cmd := exec.CommandContext(ctx, player, playerArgs(player, path)...)
	slog.Debug("Starting playback", "player", player, "file", path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	fmt.Fprintln(p.out, "Playback completed")
	return nil
}

// PlayBytes writes data to a temporary file with the given extension and
// plays it. The file is removed afterwards.
func (p *Player) PlayBytes(ctx context.Context, data []byte, ext string) error {
	tmp, err := os.CreateTemp("", "interviewprep-*."+strings.TrimPrefix(ext, "."))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return p.PlayFile(ctx, tmp.Name())
}

func playerArgs(player, path string) []string {
	switch player {
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", path}
	case "mpv":
		return []string{"--no-video", "--really-quiet", path}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", path}
	default:
		return []string{path}
	}
}

func (p *Player) findAudioPlayer(path string) (string, error) {
	isWAV := strings.EqualFold(filepath.Ext(path), ".wav")
	for _, player := range p.players {
		// aplay only handles WAV files
		if player == "aplay" && !isWAV {
			continue
		}
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(p.players, ", "))
}
