package wire

import (
	"fmt"
	"unicode/utf16"
)

// Codepage identifies the text encoding used for a frame's textual fields
// (TypeName, String content, and the invariant-culture form of scalar and
// DateTime content), per spec §6.1/§6.4. Values match the corresponding
// Windows/.NET code page identifiers so a peer's configured "encoding"
// option can be communicated on the wire as a plain int32.
type Codepage int32

const (
	CodepageUTF8    Codepage = 65001
	CodepageUTF16LE Codepage = 1200
	CodepageASCII   Codepage = 20127
	CodepageLatin1  Codepage = 28591
)

// DefaultCodepage is the codepage written by a peer that has not
// overridden Config.Codepage (spec §6.4 default: UTF-8).
const DefaultCodepage = CodepageUTF8

func (c Codepage) encode(s string) ([]byte, error) {
	switch c {
	case CodepageUTF8:
		return []byte(s), nil
	case CodepageASCII:
		b := make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0x7F {
				return nil, fmt.Errorf("wire: rune %q not representable in ASCII", r)
			}
			b = append(b, byte(r))
		}
		return b, nil
	case CodepageLatin1:
		b := make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0xFF {
				return nil, fmt.Errorf("wire: rune %q not representable in Latin-1", r)
			}
			b = append(b, byte(r))
		}
		return b, nil
	case CodepageUTF16LE:
		units := utf16.Encode([]rune(s))
		b := make([]byte, len(units)*2)
		for i, u := range units {
			b[2*i] = byte(u)
			b[2*i+1] = byte(u >> 8)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("wire: unsupported codepage %d", c)
	}
}

func (c Codepage) decode(b []byte) (string, error) {
	switch c {
	case CodepageUTF8:
		return string(b), nil
	case CodepageASCII, CodepageLatin1:
		runes := make([]rune, len(b))
		for i, x := range b {
			runes[i] = rune(x)
		}
		return string(runes), nil
	case CodepageUTF16LE:
		if len(b)%2 != 0 {
			return "", fmt.Errorf("wire: odd UTF-16LE byte length %d", len(b))
		}
		units := make([]uint16, len(b)/2)
		for i := range units {
			units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", fmt.Errorf("wire: unsupported codepage %d", c)
	}
}
