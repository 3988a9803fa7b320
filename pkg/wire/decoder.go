package wire

import (
	"bytes"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// Stream yields decoded chunks in arrival order until io.EOF.
type Stream interface {
	Recv() (Chunk, error)
}

// Decoder incrementally decodes a multiplexed chunk stream. Bytes may arrive
// at arbitrary boundaries; a line is only decoded once its terminating
// newline has been read.
type Decoder struct {
	r       io.Reader
	buf     []byte
	scratch [4096]byte
	readErr error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Recv returns the next chunk. Malformed or unknown-tagged lines are logged
// and skipped; the stream continues. At end of stream Recv returns the
// underlying read error (io.EOF on a clean close); a trailing fragment
// without its newline is discarded, since a bare partial line marks an
// aborted or truncated stream rather than a protocol violation.
func (d *Decoder) Recv() (Chunk, error) {
	for {
		if i := bytes.IndexByte(d.buf, '\n'); i >= 0 {
			line := d.buf[:i]
			d.buf = d.buf[i+1:]
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			c, err := DecodeChunk(line)
			if err != nil {
				var de *DecodeError
				if errors.As(err, &de) {
					log.Warn().Str("kind", string(de.Kind)).Str("tag", de.Tag).Msg("dropping undecodable chunk")
					continue
				}
				return nil, err
			}
			return c, nil
		}

		if d.readErr != nil {
			if len(d.buf) > 0 {
				log.Debug().Int("bytes", len(d.buf)).Msg("discarding trailing partial line")
				d.buf = nil
			}
			return nil, d.readErr
		}

		n, err := d.r.Read(d.scratch[:])
		if n > 0 {
			d.buf = append(d.buf, d.scratch[:n]...)
		}
		if err != nil {
			// Surface only after buffered complete lines are drained.
			d.readErr = err
		}
	}
}

// TextDecoder adapts a plain-text response body to the Stream interface:
// every read becomes one running text delta and the stream carries no other
// chunk kinds. Used when the server opted into plain-text mode.
type TextDecoder struct {
	r       io.Reader
	scratch [4096]byte
}

// NewTextDecoder returns a TextDecoder reading from r.
func NewTextDecoder(r io.Reader) *TextDecoder {
	return &TextDecoder{r: r}
}

// Recv returns the next text delta, or the underlying read error once the
// body is exhausted.
func (d *TextDecoder) Recv() (Chunk, error) {
	for {
		n, err := d.r.Read(d.scratch[:])
		if n > 0 {
			return TextDelta{Text: string(d.scratch[:n])}, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

var (
	_ Stream = (*Decoder)(nil)
	_ Stream = (*TextDecoder)(nil)
)
