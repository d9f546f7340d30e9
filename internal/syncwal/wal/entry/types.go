package entry

type OpKind uint8

const (
	OpUnknown OpKind = iota
	OpPut
	OpDelete
	OpCheckpoint
	OpCompact
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpCheckpoint:
		return "checkpoint"
	case OpCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// Operation is the tagged variant carried by every log entry.
// Exactly the fields for the given Kind are meaningful; the rest are zero.
type Operation struct {
	Kind OpKind `json:"kind"`

	// NodeID names the document for Put and Delete.
	NodeID string `json:"node_id,omitempty"`
	// Data is the raw JSON document for Put. The WAL never parses it.
	Data []byte `json:"data,omitempty"`

	// CheckpointSeq marks entries strictly below it as discardable (Checkpoint).
	CheckpointSeq uint64 `json:"checkpoint_seq,omitempty"`
	// ThroughSeq records the boundary of a completed compaction (Compact).
	ThroughSeq uint64 `json:"through_seq,omitempty"`
}

// Entry is the atomic unit of the WAL.
type Entry struct {
	// Seq is strictly increasing across the life of the log and never reused.
	Seq uint64 `json:"seq"`
	// Timestamp is milliseconds since epoch. Informational only; ordering is by Seq.
	Timestamp int64 `json:"timestamp"`
	// Actor is the opaque identifier of the logical writer.
	Actor string `json:"actor"`

	Op Operation `json:"op"`
}

// Framed is a decoded frame payload together with its position in the segment.
type Framed struct {
	Payload []byte `json:"payload"`
	CRC     uint32 `json:"crc"`
	// Offset is the byte offset of the length prefix within the segment.
	Offset int64 `json:"offset"`
	// Size is the full on-disk footprint: header + payload + checksum.
	Size int64 `json:"size"`
}

// PutOp builds a put operation for the given node id and raw JSON document.
func PutOp(nodeID string, data []byte) Operation {
	return Operation{Kind: OpPut, NodeID: nodeID, Data: data}
}

// DeleteOp builds a delete operation for the given node id.
func DeleteOp(nodeID string) Operation {
	return Operation{Kind: OpDelete, NodeID: nodeID}
}

// CheckpointOp marks all entries with seq strictly below checkpointSeq as discardable.
func CheckpointOp(checkpointSeq uint64) Operation {
	return Operation{Kind: OpCheckpoint, CheckpointSeq: checkpointSeq}
}

// CompactOp records a completed compaction through throughSeq, for audit.
func CompactOp(throughSeq uint64) Operation {
	return Operation{Kind: OpCompact, ThroughSeq: throughSeq}
}
