package wire

import (
	"fmt"
	"io"
	"net/http"
)

// Writer encodes chunks onto a destination, flushing after every write when
// the destination supports it. It is the server-side counterpart of Decoder.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	text    bool
}

// NewWriter returns a Writer targeting w. If w implements http.Flusher each
// chunk is flushed immediately so clients observe token-by-token delivery.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		wr.flusher = f
	}
	return wr
}

// NewTextWriter returns a Writer in plain-text mode, the counterpart of
// NewTextDecoder: Send writes the raw text of text deltas and discards every
// other chunk, so producers stay oblivious to which mode serves them.
func NewTextWriter(w io.Writer) *Writer {
	wr := NewWriter(w)
	wr.text = true
	return wr
}

// Send encodes and writes one chunk. In plain-text mode only text deltas
// reach the destination.
func (w *Writer) Send(c Chunk) error {
	if w.text {
		if td, ok := c.(TextDelta); ok {
			return w.SendText(td.Text)
		}
		return nil
	}
	line, err := EncodeChunk(c)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("wire: write chunk: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// SendText writes raw text for plain-text mode responses. No framing is
// applied; the whole body is one running text delta.
func (w *Writer) SendText(s string) error {
	if _, err := io.WriteString(w.w, s); err != nil {
		return fmt.Errorf("wire: write text: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
