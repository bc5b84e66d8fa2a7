package parser

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText converts raw upload bytes to UTF-8 text, stripping any byte order
// mark. Input that is neither BOM-tagged nor valid UTF-8 is read as Latin-1,
// which is what spreadsheet exports on older desktops usually produce.
func DecodeText(data []byte) (string, string, error) {
	switch {
	case len(data) == 0:
		return "", "utf-8", nil
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8-bom", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		return out, "utf-16le", err
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
		return out, "utf-16be", err
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	}

	out, err := decodeWith(data, charmap.ISO8859_1.NewDecoder())
	return out, "latin-1", err
}

func decodeWith(data []byte, t transform.Transformer) (string, error) {
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode input: %w", err)
	}
	return string(out), nil
}
