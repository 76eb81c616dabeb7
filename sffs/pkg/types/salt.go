package types

import (
	"bytes"
	"encoding/binary"
)

// SaltSize is the size of the 64-byte prefix fed to the HMAC before the
// payload. The salt binds a tag to its cluster context.
const SaltSize = 0x40

// SuperblockSalt authenticates a superblock replica by its starting cluster.
type SuperblockSalt struct {
	Pad             [0x12]byte
	StartingCluster uint16
	Pad2            [0x2c]byte
}

// Encode serializes the salt to its 64-byte wire form.
func (s SuperblockSalt) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, SaltSize))
	_ = binary.Write(buf, binary.BigEndian, s)
	return buf.Bytes()
}

// DataSalt authenticates a data cluster by the identity and position of the
// file contents it belongs to.
type DataSalt struct {
	UID        Uid
	Name       [12]byte
	ChainIndex uint32
	FstIndex   uint32
	X3         uint32
	Pad        [0x24]byte
}

// Encode serializes the salt to its 64-byte wire form.
func (s DataSalt) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, SaltSize))
	_ = binary.Write(buf, binary.BigEndian, s)
	return buf.Bytes()
}
