package entry

import (
	"encoding/binary"
	"fmt"
)

const (
	// CodecVersion is the current payload schema version. A decoder seeing a
	// greater version fails the frame; a new major layout bumps this number.
	CodecVersion uint8 = 1

	VersionFieldSize = 1               // payload schema version
	KindFieldSize    = 1               // operation tag
	SeqFieldSize     = 8               // sequence number (uint64)
	TsFieldSize      = 8               // timestamp, milliseconds since epoch
	LenFieldSize     = 4               // length prefix for variable fields
	MaxActorSize     = 1 * 1024        // 1 KB
	MaxNodeIDSize    = 4 * 1024        // 4 KB
	MaxDocumentSize  = 4 * 1024 * 1024 // 4 MB

	// payloadFixedSize is the size of the fields every payload carries.
	payloadFixedSize = VersionFieldSize + KindFieldSize + SeqFieldSize + TsFieldSize + LenFieldSize
)

// Helpers

func need(data []byte, at, want int, field string) error {
	if at < 0 {
		at = 0
	}
	have := len(data) - at
	if have >= want {
		return nil
	}
	return &CodecError{
		Kind:  CodecTruncated,
		Field: field,
		At:    at,
		Want:  want,
		Have:  have,
		Err:   ErrCodecTruncated,
	}
}

func u32le(data []byte, at int, field string) (uint32, error) {
	if err := need(data, at, LenFieldSize, field); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[at : at+LenFieldSize]), nil
}

func u64le(data []byte, at int, field string) (uint64, error) {
	if err := need(data, at, SeqFieldSize, field); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data[at : at+SeqFieldSize]), nil
}

func rejectTrailing(data []byte, expectedLen int, field string) error {
	if len(data) == expectedLen {
		return nil
	}
	return &CodecError{
		Kind:  CodecCorrupt,
		Field: field,
		At:    expectedLen,
		Want:  expectedLen,
		Have:  len(data),
		Err:   fmt.Errorf("%w: trailing bytes", ErrCodecCorrupt),
	}
}

func oversize(field string, at, limit, got int) error {
	return &CodecError{
		Kind:  CodecInvalid,
		Field: field,
		At:    at,
		Want:  limit,
		Have:  got,
		Err:   ErrCodecInvalid,
	}
}

// variantSize returns the encoded size of the kind-specific fields.
func variantSize(op Operation) (int, error) {
	switch op.Kind {
	case OpPut:
		return LenFieldSize + len(op.NodeID) + LenFieldSize + len(op.Data), nil
	case OpDelete:
		return LenFieldSize + len(op.NodeID), nil
	case OpCheckpoint, OpCompact:
		return SeqFieldSize, nil
	default:
		return 0, &CodecError{
			Kind:  CodecInvalid,
			Field: "kind",
			At:    VersionFieldSize,
			Have:  int(op.Kind),
			Err:   ErrCodecInvalid,
		}
	}
}

// Encode serializes an entry into a frame payload.
// Layout: [version (1)][kind (1)][seq (8)][timestamp (8)][actor_len (4)][actor][variant...]
func Encode(e Entry) ([]byte, error) {
	if len(e.Actor) > MaxActorSize {
		return nil, oversize("actor_len", payloadFixedSize-LenFieldSize, MaxActorSize, len(e.Actor))
	}

	switch e.Op.Kind {
	case OpPut:
		if len(e.Op.NodeID) > MaxNodeIDSize {
			return nil, oversize("node_id_len", 0, MaxNodeIDSize, len(e.Op.NodeID))
		}
		if len(e.Op.Data) > MaxDocumentSize {
			return nil, oversize("data_len", 0, MaxDocumentSize, len(e.Op.Data))
		}
	case OpDelete:
		if len(e.Op.NodeID) > MaxNodeIDSize {
			return nil, oversize("node_id_len", 0, MaxNodeIDSize, len(e.Op.NodeID))
		}
	}

	vs, err := variantSize(e.Op)
	if err != nil {
		return nil, err
	}

	data := make([]byte, payloadFixedSize+len(e.Actor)+vs)
	off := 0

	data[off] = CodecVersion
	off += VersionFieldSize
	data[off] = byte(e.Op.Kind)
	off += KindFieldSize

	binary.LittleEndian.PutUint64(data[off:off+SeqFieldSize], e.Seq)
	off += SeqFieldSize
	binary.LittleEndian.PutUint64(data[off:off+TsFieldSize], uint64(e.Timestamp)) //nolint:gosec
	off += TsFieldSize

	binary.LittleEndian.PutUint32(data[off:off+LenFieldSize], uint32(len(e.Actor))) //nolint:gosec
	off += LenFieldSize
	copy(data[off:off+len(e.Actor)], e.Actor)
	off += len(e.Actor)

	switch e.Op.Kind {
	case OpPut:
		binary.LittleEndian.PutUint32(data[off:off+LenFieldSize], uint32(len(e.Op.NodeID))) //nolint:gosec
		off += LenFieldSize
		copy(data[off:off+len(e.Op.NodeID)], e.Op.NodeID)
		off += len(e.Op.NodeID)

		binary.LittleEndian.PutUint32(data[off:off+LenFieldSize], uint32(len(e.Op.Data))) //nolint:gosec
		off += LenFieldSize
		copy(data[off:off+len(e.Op.Data)], e.Op.Data)
	case OpDelete:
		binary.LittleEndian.PutUint32(data[off:off+LenFieldSize], uint32(len(e.Op.NodeID))) //nolint:gosec
		off += LenFieldSize
		copy(data[off:off+len(e.Op.NodeID)], e.Op.NodeID)
	case OpCheckpoint:
		binary.LittleEndian.PutUint64(data[off:off+SeqFieldSize], e.Op.CheckpointSeq)
	case OpCompact:
		binary.LittleEndian.PutUint64(data[off:off+SeqFieldSize], e.Op.ThroughSeq)
	}

	return data, nil
}

// Decode deserializes a frame payload produced by Encode.
// Unknown versions and kinds fail the payload rather than being skipped, so a
// future schema change surfaces as frame corruption instead of silent misreads.
func Decode(data []byte) (Entry, error) {
	var e Entry
	off := 0

	if err := need(data, off, VersionFieldSize+KindFieldSize, "version"); err != nil {
		return e, err
	}
	if data[off] != CodecVersion {
		return e, &CodecError{
			Kind:  CodecInvalid,
			Field: "version",
			At:    off,
			Want:  int(CodecVersion),
			Have:  int(data[off]),
			Err:   ErrCodecInvalid,
		}
	}
	off += VersionFieldSize

	kind := OpKind(data[off])
	if kind <= OpUnknown || kind > OpCompact {
		return e, &CodecError{
			Kind:  CodecInvalid,
			Field: "kind",
			At:    off,
			Have:  int(data[off]),
			Err:   ErrCodecInvalid,
		}
	}
	off += KindFieldSize

	seq, err := u64le(data, off, "seq")
	if err != nil {
		return e, err
	}
	off += SeqFieldSize

	ts, err := u64le(data, off, "timestamp")
	if err != nil {
		return e, err
	}
	off += TsFieldSize

	actorLen, err := u32le(data, off, "actor_len")
	if err != nil {
		return e, err
	}
	off += LenFieldSize
	if actorLen > MaxActorSize {
		return e, oversize("actor_len", off-LenFieldSize, MaxActorSize, int(actorLen))
	}
	if err := need(data, off, int(actorLen), "actor"); err != nil {
		return e, err
	}
	actor := string(data[off : off+int(actorLen)])
	off += int(actorLen)

	e.Seq = seq
	e.Timestamp = int64(ts) //nolint:gosec
	e.Actor = actor
	e.Op.Kind = kind

	switch kind {
	case OpPut:
		idLen, err := u32le(data, off, "node_id_len")
		if err != nil {
			return e, err
		}
		off += LenFieldSize
		if idLen > MaxNodeIDSize {
			return e, oversize("node_id_len", off-LenFieldSize, MaxNodeIDSize, int(idLen))
		}
		if err := need(data, off, int(idLen), "node_id"); err != nil {
			return e, err
		}
		e.Op.NodeID = string(data[off : off+int(idLen)])
		off += int(idLen)

		dataLen, err := u32le(data, off, "data_len")
		if err != nil {
			return e, err
		}
		off += LenFieldSize
		if dataLen > MaxDocumentSize {
			return e, oversize("data_len", off-LenFieldSize, MaxDocumentSize, int(dataLen))
		}
		if err := need(data, off, int(dataLen), "data"); err != nil {
			return e, err
		}
		if dataLen > 0 {
			doc := make([]byte, dataLen)
			copy(doc, data[off:off+int(dataLen)])
			e.Op.Data = doc
		}
		off += int(dataLen)
	case OpDelete:
		idLen, err := u32le(data, off, "node_id_len")
		if err != nil {
			return e, err
		}
		off += LenFieldSize
		if idLen > MaxNodeIDSize {
			return e, oversize("node_id_len", off-LenFieldSize, MaxNodeIDSize, int(idLen))
		}
		if err := need(data, off, int(idLen), "node_id"); err != nil {
			return e, err
		}
		e.Op.NodeID = string(data[off : off+int(idLen)])
		off += int(idLen)
	case OpCheckpoint:
		ckpt, err := u64le(data, off, "checkpoint_seq")
		if err != nil {
			return e, err
		}
		e.Op.CheckpointSeq = ckpt
		off += SeqFieldSize
	case OpCompact:
		through, err := u64le(data, off, "through_seq")
		if err != nil {
			return e, err
		}
		e.Op.ThroughSeq = through
		off += SeqFieldSize
	}

	if err := rejectTrailing(data, off, "payload_length"); err != nil {
		return e, err
	}

	return e, nil
}
