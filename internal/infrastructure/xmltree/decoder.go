package xmltree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"3tcapital/saftprocessor/internal/core/saft"
)

// DefaultEncodings is the order in which audit files are tried.
// Exports mix UTF-8 with Latin-family legacy encodings.
var DefaultEncodings = []string{"utf-8", "latin-1", "iso-8859-1", "cp1252"}

var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

type candidate struct {
	name   string
	enc    encoding.Encoding
	strict bool
}

// Decoder reads files trying a fixed, ordered list of encodings.
type Decoder struct {
	candidates []candidate
}

// NewDecoder builds a decoder for the given encoding names, in order.
// With no names it uses DefaultEncodings.
func NewDecoder(names ...string) (*Decoder, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}
	d := &Decoder{candidates: make([]candidate, 0, len(names))}
	for _, name := range names {
		c, err := lookup(name)
		if err != nil {
			return nil, err
		}
		d.candidates = append(d.candidates, c)
	}
	return d, nil
}

func lookup(name string) (candidate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return candidate{name: "utf-8", enc: unicode.UTF8BOM, strict: true}, nil
	case "latin-1", "latin1":
		return candidate{name: "latin-1", enc: charmap.ISO8859_1}, nil
	case "iso-8859-1", "iso8859-1":
		return candidate{name: "iso-8859-1", enc: charmap.ISO8859_1}, nil
	case "cp1252", "windows-1252":
		return candidate{name: "cp1252", enc: charmap.Windows1252}, nil
	case "iso-8859-15", "latin-9":
		return candidate{name: "iso-8859-15", enc: charmap.ISO8859_15}, nil
	default:
		return candidate{}, fmt.Errorf("unsupported encoding %q", name)
	}
}

// Encodings returns the configured order.
func (d *Decoder) Encodings() []string {
	names := make([]string, 0, len(d.candidates))
	for _, c := range d.candidates {
		names = append(names, c.name)
	}
	return names
}

// DecodeFile returns the file text and the name of the encoding that decoded it.
func (d *Decoder) DecodeFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &saft.DecodeError{File: filepath.Base(path), Err: fmt.Errorf("read file: %w", err)}
	}
	text, used, err := d.Decode(data)
	if err != nil {
		var decErr *saft.DecodeError
		if errors.As(err, &decErr) {
			decErr.File = filepath.Base(path)
		}
		return "", "", err
	}
	return text, used, nil
}

// Decode tries each encoding in order and returns the first clean result.
func (d *Decoder) Decode(data []byte) (string, string, error) {
	var lastErr error
	tried := make([]string, 0, len(d.candidates))
	for _, c := range d.candidates {
		tried = append(tried, c.name)
		if c.strict && !utf8.Valid(data) {
			lastErr = errInvalidUTF8
			continue
		}
		out, _, err := transform.Bytes(c.enc.NewDecoder(), data)
		if err != nil {
			lastErr = err
			continue
		}
		return string(out), c.name, nil
	}
	return "", "", &saft.DecodeError{Tried: tried, Err: lastErr}
}
