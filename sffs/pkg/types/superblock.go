package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SuperblockSize is the on-NAND size of one superblock replica.
const SuperblockSize = 0x40000

// SuperblockMagic identifies a superblock ("SFFS").
var SuperblockMagic = [4]byte{'S', 'F', 'F', 'S'}

// Superblock holds the FAT and the FST. It is replicated 16 times in the
// last 256 clusters of the device and stored plaintext; the replica with the
// highest version that verifies is authoritative.
type Superblock struct {
	Magic   [4]byte
	Version uint32
	Unknown uint32
	// Fat is indexed by cluster. Entries are either the next cluster in a
	// chain or one of the Cluster* sentinels.
	Fat [TotalClusters]uint16
	Fst [FstEntryCount]FstEntry
	Pad [20]byte
}

// DecodeSuperblock parses a raw superblock from exactly SuperblockSize bytes.
func DecodeSuperblock(data []byte) (*Superblock, error) {
	if len(data) != SuperblockSize {
		return nil, fmt.Errorf("superblock must be %#x bytes, got %#x", SuperblockSize, len(data))
	}
	block := new(Superblock)
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, block); err != nil {
		return nil, fmt.Errorf("failed to decode superblock: %w", err)
	}
	return block, nil
}

// Encode serializes the superblock to its on-NAND representation.
func (s *Superblock) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, SuperblockSize))
	// Encoding a fixed-size struct into a buffer cannot fail.
	_ = binary.Write(buf, binary.BigEndian, s)
	return buf.Bytes()
}
