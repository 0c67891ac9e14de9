package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// headerSize is the fixed 9-byte correlation/type header (spec §6.1):
// MessageId(4) + InResponseToId(4) + TypeCode(1).
const headerSize = 9

// flusher is implemented by *bufio.Writer. WriteFrame flushes after a
// successful write so one WriteFrame call puts exactly one frame on the
// wire (spec §4.1: "atomically (one stream write + flush)").
type flusher interface {
	Flush() error
}

// Envelope is the logical decoding of one wire frame: the correlation ids
// plus the reconstructed application value. Both ids zero means an
// application message (spec GLOSSARY); either non-zero means the frame
// belongs to the RMI correlation subsystem.
type Envelope struct {
	MessageID      int32
	InResponseToID int32
	TypeCode       TypeCode
	Value          any
}

// IsApplication reports whether the envelope is a plain application
// message, i.e. carries no RMI correlation id.
func (e *Envelope) IsApplication() bool {
	return e.MessageID == 0 && e.InResponseToID == 0
}

// WriteFrame serializes value and writes exactly one frame to w, per the
// byte layout of spec §6.1. w is expected to be (or wrap) something that
// also implements Flush, such as *bufio.Writer; plain io.Writer values are
// written without a trailing flush.
func WriteFrame(w io.Writer, cp Codepage, msgID, inResponseTo int32, value any, codec *ValueCodec) error {
	typeCode, typeName, textual, content, err := codec.EncodeValue(value, cp)
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return werr
		}
		return NewError(KindSerializationError, msgID, inResponseTo, typeName, err)
	}

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(msgID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(inResponseTo))
	buf[8] = byte(typeCode)

	if typeCode.bareFrame() {
		if _, err := w.Write(buf); err != nil {
			return NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
		}
		return flushIfPossible(w, msgID, inResponseTo)
	}

	wireContent := content
	if textual {
		wireContent, err = cp.encode(string(content))
		if err != nil {
			return NewError(KindSerializationError, msgID, inResponseTo, typeName, err)
		}
	}

	cpField := make([]byte, 4)
	binary.LittleEndian.PutUint32(cpField, uint32(cp))
	buf = append(buf, cpField...)

	if typeCode == Object {
		nameBytes, err := cp.encode(typeName)
		if err != nil {
			return NewError(KindSerializationError, msgID, inResponseTo, typeName, err)
		}
		lenField := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenField, uint32(len(nameBytes))) //nolint:gosec // bounded by int32 per spec
		buf = append(buf, lenField...)
		buf = append(buf, nameBytes...)
	}

	contentLenField := make([]byte, 4)
	binary.LittleEndian.PutUint32(contentLenField, uint32(len(wireContent))) //nolint:gosec // bounded by int32 per spec
	buf = append(buf, contentLenField...)
	buf = append(buf, wireContent...)

	if _, err := w.Write(buf); err != nil {
		return NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
	}
	return flushIfPossible(w, msgID, inResponseTo)
}

func flushIfPossible(w io.Writer, msgID, inResponseTo int32) error {
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
		}
	}
	return nil
}

// ReadFrame reads and decodes exactly one frame from r.
func ReadFrame(r io.Reader, codec *ValueCodec) (*Envelope, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, NewError(KindConnectionBroken, 0, 0, "", err)
	}

	msgID := int32(binary.LittleEndian.Uint32(header[0:4]))
	inResponseTo := int32(binary.LittleEndian.Uint32(header[4:8]))
	typeCode := TypeCode(header[8])

	if typeCode.bareFrame() {
		v, err := codec.DecodeValue(typeCode, "", nil, "", msgID, inResponseTo)
		if err != nil {
			return nil, err
		}
		return &Envelope{MessageID: msgID, InResponseToID: inResponseTo, TypeCode: typeCode, Value: v}, nil
	}

	cpBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, cpBuf); err != nil {
		return nil, NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
	}
	cp := Codepage(int32(binary.LittleEndian.Uint32(cpBuf)))

	var typeName string
	if typeCode == Object {
		nameLenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, nameLenBuf); err != nil {
			return nil, NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
		}
		nameLen := int32(binary.LittleEndian.Uint32(nameLenBuf))
		if nameLen < 0 {
			return nil, NewError(KindProtocolViolation, msgID, inResponseTo, "", fmt.Errorf("wire: negative type name length %d", nameLen))
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
		}
		name, err := cp.decode(nameBytes)
		if err != nil {
			return nil, NewError(KindSerializationError, msgID, inResponseTo, "", err)
		}
		typeName = name
	}

	contentLenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, contentLenBuf); err != nil {
		return nil, NewError(KindConnectionBroken, msgID, inResponseTo, "", err)
	}
	contentLen := int32(binary.LittleEndian.Uint32(contentLenBuf))
	if contentLen < 0 {
		return nil, NewError(KindProtocolViolation, msgID, inResponseTo, typeName, fmt.Errorf("wire: negative content length %d", contentLen))
	}
	content := make([]byte, contentLen)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, NewError(KindConnectionBroken, msgID, inResponseTo, typeName, err)
	}

	var text string
	if isTextualTypeCode(typeCode) {
		decoded, err := cp.decode(content)
		if err != nil {
			return nil, NewError(KindSerializationError, msgID, inResponseTo, typeName, err)
		}
		text = decoded
	}

	v, err := codec.DecodeValue(typeCode, typeName, content, text, msgID, inResponseTo)
	if err != nil {
		return nil, err
	}
	return &Envelope{MessageID: msgID, InResponseToID: inResponseTo, TypeCode: typeCode, Value: v}, nil
}

func isTextualTypeCode(t TypeCode) bool {
	switch t {
	case Boolean, Char, SByte, Byte, Int16, UInt16, Int32, UInt32, Int64, UInt64, Single, Double, Decimal, DateTime, String:
		return true
	default:
		return false
	}
}
