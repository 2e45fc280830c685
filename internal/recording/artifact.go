package recording

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/interviewprep/internal/audio"
)

// Artifact is a finalized recording. It is immutable; accessors return
// copies.
type Artifact struct {
	id        string
	data      []byte
	format    audio.Format
	elapsed   int
	chunks    int
	createdAt time.Time
}

func newArtifact(chunks [][]byte, format audio.Format, elapsed int) *Artifact {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Artifact{
		id:        uuid.NewString(),
		data:      data,
		format:    format,
		elapsed:   elapsed,
		chunks:    len(chunks),
		createdAt: time.Now(),
	}
}

func (a *Artifact) ID() string { return a.id }

// Bytes returns a copy of the encoded audio.
func (a *Artifact) Bytes() []byte { return bytes.Clone(a.data) }

// Reader returns a reader over the encoded audio.
func (a *Artifact) Reader() io.Reader { return bytes.NewReader(a.data) }

func (a *Artifact) Size() int { return len(a.data) }
func (a *Artifact) MIMEType() string { return a.format.MIMEType }
func (a *Artifact) Extension() string { return a.format.Extension }
func (a *Artifact) ElapsedSeconds() int { return a.elapsed }
func (a *Artifact) ChunkCount() int { return a.chunks }
func (a *Artifact) CreatedAt() time.Time { return a.createdAt }

// Filename is the suggested file name, e.g. "answer-20240102-150405.webm".
func (a *Artifact) Filename() string {
	return "answer-" + a.createdAt.Format("20060102-150405") + "." + a.format.Extension
}
