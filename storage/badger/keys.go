package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/veritas/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "doc:"
	documentHashPrefix = "dochash:"
	documentIDSeq      = "docseq"
	chunkPrefix        = "chk:"
	chunkDocPrefix     = "chkdoc:"
	chunkIDSeq         = "chkseq"
	synapsePrefix      = "syn:"
)

// idKey builds prefix followed by the BigEndian encoding of ids, so that
// lexicographic key order matches numeric order.
func idKey(prefix string, ids ...core.ID) []byte {
	buf := make([]byte, len(prefix)+8*len(ids))
	offset := copy(buf, prefix)
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[offset:], uint64(id))
		offset += 8
	}
	return buf
}

// idFromKey decodes the trailing 8 bytes of a key produced by idKey.
func idFromKey(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return idKey(documentPrefix, id)
}

// makeDocumentHashKey generates the content hash index key.
func makeDocumentHashKey(hash core.ID) []byte {
	return idKey(documentHashPrefix, hash)
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return idKey(chunkPrefix, id)
}

// makeChunkDocKey generates a composite key for the document index.
// Format: prefix:documentID:chunkID
func makeChunkDocKey(documentID, chunkID core.ID) []byte {
	return idKey(chunkDocPrefix, documentID, chunkID)
}

// makePartialChunkDocKey generates a partial key for per-document scans.
// Format: prefix:documentID
func makePartialChunkDocKey(documentID core.ID) []byte {
	return idKey(chunkDocPrefix, documentID)
}

// makeSynapseKey generates a key for a chunk's synapse record.
func makeSynapseKey(chunkID core.ID) []byte {
	return idKey(synapsePrefix, chunkID)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
