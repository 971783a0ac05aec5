package samp

import (
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// defaultCharset is the fallback applied when detection is uncertain or the
// detected name is unknown. The protocol predates Unicode adoption and most
// servers emit a single-byte Windows codepage.
const defaultCharset = "windows-1252"

// Detector guesses the text encoding of raw protocol strings. Implementations
// must never fail: on uncertainty they return a default charset name.
type Detector interface {
	Detect(data []byte) string
}

// NewDetector returns the default Detector backed by chardet.
func NewDetector() Detector {
	return &chardetDetector{detector: chardet.NewTextDetector()}
}

type chardetDetector struct {
	detector *chardet.Detector
}

func (c *chardetDetector) Detect(data []byte) string {
	if len(data) == 0 {
		return defaultCharset
	}

	result, err := c.detector.DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return defaultCharset
	}

	return result.Charset
}

// decodeText converts raw protocol bytes to a string using the charset
// reported by the detector. It never fails: unknown charset names and
// undecodable byte sequences fall back to Windows-1252 with replacement,
// which as a single-byte codepage always yields a result.
func decodeText(det Detector, raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	// ASCII is invariant across every charset the protocol is seen with;
	// skip detection so short technical strings are never misclassified.
	if isASCII(raw) {
		return string(raw)
	}

	name := defaultCharset
	if det != nil {
		name = det.Detect(raw)
	}

	var enc encoding.Encoding = charmap.Windows1252
	if e, err := htmlindex.Get(name); err == nil {
		enc = e
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		out, _ = charmap.Windows1252.NewDecoder().Bytes(raw)
	}

	return string(out)
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
