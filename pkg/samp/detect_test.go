package samp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedDetector string

func (d fixedDetector) Detect([]byte) string { return string(d) }

func TestDecodeText(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", decodeText(NewDetector(), nil))
	})

	t.Run("ascii bypasses detection", func(t *testing.T) {
		assert.Equal(t, "Test Server", decodeText(fixedDetector("utf-16be"), []byte("Test Server")))
	})

	t.Run("cyrillic cp1251", func(t *testing.T) {
		// "Сервер" in windows-1251
		raw := []byte{0xD1, 0xE5, 0xF0, 0xE2, 0xE5, 0xF0}
		assert.Equal(t, "Сервер", decodeText(fixedDetector("windows-1251"), raw))
	})

	t.Run("unknown charset falls back to windows-1252", func(t *testing.T) {
		// 0xE9 is é in windows-1252
		assert.Equal(t, "café", decodeText(fixedDetector("no-such-charset"), []byte{'c', 'a', 'f', 0xE9}))
	})

	t.Run("nil detector still decodes", func(t *testing.T) {
		assert.Equal(t, "café", decodeText(nil, []byte{'c', 'a', 'f', 0xE9}))
	})
}

func TestDetectorNeverFails(t *testing.T) {
	det := NewDetector()

	assert.NotEmpty(t, det.Detect(nil))
	assert.NotEmpty(t, det.Detect([]byte{0xFF, 0xFE, 0x00}))
	assert.NotEmpty(t, det.Detect([]byte("plain text")))
}
