package protocol

import (
	"bytes"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// MaxPending caps the bytes kept while waiting for a delimiter. A longer
// unterminated tail is dropped.
const MaxPending = 16 << 10

// Line is one logical line produced by the LineDecoder.
type Line struct {
	// Text is the decoded line without the delimiter and surrounding whitespace.
	Text string
	// Anomaly is set when invalid UTF-8 was replaced with U+FFFD.
	Anomaly bool
}

// LineDecoder turns a byte stream into lines.
//
// Framing happens on raw bytes: '\n' never occurs inside a multi-byte UTF-8
// sequence, so a rune split across two reads is reassembled before decoding.
// A LineDecoder belongs to one open link and is not safe for concurrent use.
type LineDecoder struct {
	// buf holds bytes not yet terminated by a delimiter.
	buf []byte
	// discarded counts bytes dropped over MaxPending since the last TakeDiscarded.
	discarded int
	// utf8 replaces invalid sequences instead of failing.
	utf8 *encoding.Decoder
}

// NewLineDecoder returns a decoder with an empty buffer.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{
		utf8: unicode.UTF8.NewDecoder(),
	}
}

// Feed appends chunk to the buffer and returns the complete lines it made
// available. The chunk is buffered immediately; lines are extracted lazily as
// the sequence is consumed, and whatever is not consumed stays buffered for
// the next call. Empty lines are dropped.
//
// When the unterminated tail grows past MaxPending it is discarded; complete
// lines before it are kept.
func (d *LineDecoder) Feed(chunk []byte) iter.Seq[Line] {
	d.buf = append(d.buf, chunk...)

	if tail := len(d.buf) - bytes.LastIndexByte(d.buf, Delimiter) - 1; tail > MaxPending {
		d.discarded += tail
		d.buf = d.buf[:len(d.buf)-tail]
	}

	return func(yield func(Line) bool) {
		for {
			idx := bytes.IndexByte(d.buf, Delimiter)
			if idx < 0 {
				return
			}

			raw := d.buf[:idx]
			line := d.decode(raw)
			d.buf = d.buf[idx+1:]

			if line.Text == "" {
				continue
			}

			if !yield(line) {
				return
			}
		}
	}
}

// Buffered returns the number of bytes waiting for a delimiter.
func (d *LineDecoder) Buffered() int {
	return len(d.buf)
}

// TakeDiscarded returns how many bytes were dropped over MaxPending since the
// previous call, and resets the count.
func (d *LineDecoder) TakeDiscarded() int {
	n := d.discarded
	d.discarded = 0

	return n
}

// Reset discards buffered bytes.
func (d *LineDecoder) Reset() {
	d.buf = nil
	d.discarded = 0
}

func (d *LineDecoder) decode(raw []byte) Line {
	anomaly := !utf8.Valid(raw)

	text, err := d.utf8.Bytes(raw)
	if err != nil {
		// The UTF-8 decoder replaces instead of failing; this is a last resort.
		return Line{
			Text:    strings.TrimSpace(strings.ToValidUTF8(string(raw), string(utf8.RuneError))),
			Anomaly: true,
		}
	}

	return Line{
		Text:    strings.TrimSpace(string(text)),
		Anomaly: anomaly,
	}
}
