package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
)

// Segment record framing. Everything is little-endian.
//
// Object frame:
//   tag(u32="OBJ1") payload_size(u32) version(u64) type_id(u64)
//   created_ms(u64) object_id(16B) definition_id(16B) payload
//
// Edge frame:
//   tag(u32="EDG1") name_len(u32) role_len(u32) props_len(u32)
//   created_ms(u64) from_id(16B) from_ver(u64) to_id(16B) to_ver(u64)
//   name role props
const (
	objectTag uint32 = 0x314a424f // "OBJ1"
	edgeTag   uint32 = 0x31474445 // "EDG1"
)

func encodeObjectFrame(rec ObjectRecord) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 64+len(rec.Payload)))
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], objectTag)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(rec.Payload)))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], uint64(rec.Ref.Ver))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(rec.Type))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], rec.CreatedMS)
	buf.Write(scratch[:])
	buf.Write(rec.Ref.ID[:])
	buf.Write(rec.DefinitionID[:])
	buf.Write(rec.Payload)
	return buf.Bytes()
}

func encodeEdgeFrame(rec EdgeRecord) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 96+len(rec.Name)+len(rec.Role)+len(rec.Props)))
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], edgeTag)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(rec.Name)))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(rec.Role)))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(rec.Props)))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], rec.CreatedMS)
	buf.Write(scratch[:])
	buf.Write(rec.From.ID[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(rec.From.Ver))
	buf.Write(scratch[:])
	buf.Write(rec.To.ID[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(rec.To.Ver))
	buf.Write(scratch[:])
	buf.WriteString(rec.Name)
	buf.WriteString(rec.Role)
	buf.Write(rec.Props)
	return buf.Bytes()
}

// readTag reads the next frame tag. A clean end of stream, including a
// truncated tag at the tail, stops the scan without error.
func readTag(r *bufio.Reader) (uint32, bool, error) {
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", errdefs.ErrIO, err)
	}
	return binary.LittleEndian.Uint32(raw[:]), true, nil
}

// scanObjectSegment replays every object frame in order. Truncated fields
// after a valid tag, or a wrong tag, surface as ErrCorruptSegment with the
// frame's offset.
func scanObjectSegment(r *bufio.Reader, visit func(ObjectRecord)) (uint64, error) {
	var offset uint64
	for {
		tag, ok, err := readTag(r)
		if err != nil {
			return offset, err
		}
		if !ok {
			return offset, nil
		}
		if tag != objectTag {
			return offset, fmt.Errorf("%w: bad object tag 0x%08x at offset %d", errdefs.ErrCorruptSegment, tag, offset)
		}

		var fixed [60]byte // payload_size + version + type_id + created_ms + object_id + definition_id
		if _, err := io.ReadFull(r, fixed[:]); err != nil {
			return offset, fmt.Errorf("%w: truncated object record at offset %d", errdefs.ErrCorruptSegment, offset)
		}

		payloadSize := binary.LittleEndian.Uint32(fixed[0:4])
		rec := ObjectRecord{
			Ref: ident.ObjectRef{
				Ver: ident.Version(binary.LittleEndian.Uint64(fixed[4:12])),
			},
			Type:      ident.TypeID(binary.LittleEndian.Uint64(fixed[12:20])),
			CreatedMS: binary.LittleEndian.Uint64(fixed[20:28]),
		}
		copy(rec.Ref.ID[:], fixed[28:44])
		copy(rec.DefinitionID[:], fixed[44:60])

		if payloadSize > 0 {
			rec.Payload = make([]byte, payloadSize)
			if _, err := io.ReadFull(r, rec.Payload); err != nil {
				return offset, fmt.Errorf("%w: truncated object payload at offset %d", errdefs.ErrCorruptSegment, offset)
			}
		}

		visit(rec)
		offset += 4 + 60 + uint64(payloadSize)
	}
}

// scanEdgeSegment replays every edge frame in order.
func scanEdgeSegment(r *bufio.Reader, visit func(EdgeRecord)) (uint64, error) {
	var offset uint64
	for {
		tag, ok, err := readTag(r)
		if err != nil {
			return offset, err
		}
		if !ok {
			return offset, nil
		}
		if tag != edgeTag {
			return offset, fmt.Errorf("%w: bad edge tag 0x%08x at offset %d", errdefs.ErrCorruptSegment, tag, offset)
		}

		var fixed [68]byte // name_len + role_len + props_len + created_ms + from_id + from_ver + to_id + to_ver
		if _, err := io.ReadFull(r, fixed[:]); err != nil {
			return offset, fmt.Errorf("%w: truncated edge record at offset %d", errdefs.ErrCorruptSegment, offset)
		}

		nameLen := binary.LittleEndian.Uint32(fixed[0:4])
		roleLen := binary.LittleEndian.Uint32(fixed[4:8])
		propsLen := binary.LittleEndian.Uint32(fixed[8:12])
		rec := EdgeRecord{
			CreatedMS: binary.LittleEndian.Uint64(fixed[12:20]),
		}
		copy(rec.From.ID[:], fixed[20:36])
		rec.From.Ver = ident.Version(binary.LittleEndian.Uint64(fixed[36:44]))
		copy(rec.To.ID[:], fixed[44:60])
		rec.To.Ver = ident.Version(binary.LittleEndian.Uint64(fixed[60:68]))

		variable := make([]byte, nameLen+roleLen+propsLen)
		if _, err := io.ReadFull(r, variable); err != nil {
			return offset, fmt.Errorf("%w: truncated edge record at offset %d", errdefs.ErrCorruptSegment, offset)
		}
		rec.Name = string(variable[:nameLen])
		rec.Role = string(variable[nameLen : nameLen+roleLen])
		if propsLen > 0 {
			rec.Props = append([]byte(nil), variable[nameLen+roleLen:]...)
		}

		visit(rec)
		offset += 4 + 68 + uint64(nameLen) + uint64(roleLen) + uint64(propsLen)
	}
}
