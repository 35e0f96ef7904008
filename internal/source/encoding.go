package source

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type EncodingResult struct {
	Encoding string `json:"encoding"`
	HasBOM   bool   `json:"has_bom"`
}

// DetectEncoding recognises byte-order marks and valid UTF-8. Anything else
// is assumed to be Windows-1252, the most common legacy encoding for source.
func DetectEncoding(data []byte) EncodingResult {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingResult{Encoding: "utf-8", HasBOM: true}
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncodingResult{Encoding: "utf-16le", HasBOM: true}
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncodingResult{Encoding: "utf-16be", HasBOM: true}
	case utf8.Valid(data):
		return EncodingResult{Encoding: "utf-8"}
	default:
		return EncodingResult{Encoding: "windows-1252"}
	}
}

func decoderFor(name string) encoding.Encoding {
	switch name {
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "windows-1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

// NormalizeToUTF8 returns data as UTF-8 without a byte-order mark.
func NormalizeToUTF8(data []byte, detected EncodingResult) []byte {
	if detected.Encoding == "utf-8" {
		if detected.HasBOM {
			return data[3:]
		}
		return data
	}

	enc := decoderFor(detected.Encoding)
	if enc == nil {
		return data
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("�"))
	}
	return out
}
