package wal

// ============================================================================
// CBOR Wire Codec
// Purpose: Encode/decode a Batch as the self-describing CBOR value spec.md
// §6 specifies; the decoder reports bytes consumed so callers can walk a
// journal file batch by batch without an explicit length prefix
// ============================================================================

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is shared across every Batch encode so that wire output is
// deterministic between runs.
var encMode, _ = cbor.CanonicalEncOptions().EncMode()

// encodeBatch serializes a Batch as a single self-describing CBOR value.
func encodeBatch(b *Batch) ([]byte, error) {
	buf, err := encMode.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("wal: encode batch: %w", err)
	}
	return buf, nil
}

// decodeBatchStream decodes one Batch from r, returning the exact number of
// bytes the decoder consumed so callers can track file position across a
// stream of back-to-back batch records. On success r is left positioned
// just past the decoded batch, even though the decoder reads ahead.
func decodeBatchStream(r *bytes.Reader) (Batch, int64, error) {
	start := r.Size() - int64(r.Len())
	dec := cbor.NewDecoder(r)
	var b Batch
	if err := dec.Decode(&b); err != nil {
		return Batch{}, 0, err
	}
	consumed := int64(dec.NumBytesRead())
	if _, err := r.Seek(start+consumed, io.SeekStart); err != nil {
		return Batch{}, 0, err
	}
	return b, consumed, nil
}
