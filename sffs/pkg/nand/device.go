// Package nand implements cluster-level I/O against a raw in-memory NAND
// image: page assembly, transparent AES of data clusters, and the spare-area
// layout (ECC plus the two HMAC copies).
package nand

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/crypto"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/ecc"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/result"
	"github.com/deploymenttheory/go-sffs/sffs/pkg/types"
)

// Device provides cluster reads and writes over a caller-owned NAND image.
// Clusters below the superblock region are stored AES-128-CBC encrypted;
// superblock clusters are stored plaintext. The device never verifies ECC or
// HMACs on read; that is the caller's responsibility.
type Device struct {
	image  []byte
	aesKey [crypto.AesKeySize]byte
	log    *zap.SugaredLogger
}

// ReadResult is the outcome of reading one cluster: the (decrypted) data and
// the two stored HMAC copies.
type ReadResult struct {
	Data  []byte
	Hmac1 crypto.Hash
	Hmac2 crypto.Hash
}

// New wraps a NAND image. The image must be at least types.NandSize bytes
// and remains owned by the caller.
func New(image []byte, aesKey [crypto.AesKeySize]byte, log *zap.SugaredLogger) (*Device, error) {
	if len(image) < types.NandSize {
		return nil, fmt.Errorf("NAND image must be at least %#x bytes, got %#x", types.NandSize, len(image))
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Device{image: image, aesKey: aesKey, log: log}, nil
}

// ReadCluster reads one cluster, decrypting it if it lies in the data region.
func (d *Device) ReadCluster(cluster uint16) (*ReadResult, error) {
	if uint32(cluster) >= types.TotalClusters {
		return nil, result.Invalid
	}

	d.log.Debugf("reading cluster %#04x", cluster)
	data := make([]byte, 0, types.ClusterDataSize)
	for page := uint32(0); page < types.PagesPerCluster; page++ {
		offset := types.Offset(uint32(cluster), page)
		data = append(data, d.image[offset:offset+types.DataBytesPerPage]...)
	}

	if cluster < types.SuperblockStartCluster {
		decrypted, err := crypto.AesDecrypt(d.aesKey, data)
		if err != nil {
			return nil, err
		}
		data = decrypted
	}

	res := &ReadResult{Data: data}

	spare1 := d.spare(cluster, types.HmacPage1)
	spare2 := d.spare(cluster, types.HmacPage2)
	copy(res.Hmac1[:], spare1[types.Hmac1OffsetInPage:types.Hmac1OffsetInPage+types.Hmac1SizeInPage])
	copy(res.Hmac2[:types.Hmac2SizeInPage1],
		spare1[types.Hmac2OffsetInPage1:types.Hmac2OffsetInPage1+types.Hmac2SizeInPage1])
	copy(res.Hmac2[types.Hmac2SizeInPage1:],
		spare2[types.Hmac2OffsetInPage2:types.Hmac2OffsetInPage2+types.Hmac2SizeInPage2])

	return res, nil
}

// WriteCluster writes 0x4000 bytes of cluster data together with its HMAC,
// encrypting data-region clusters and regenerating the spare area (ECC and
// HMAC copies) for every page.
func (d *Device) WriteCluster(cluster uint16, data []byte, mac crypto.Hash) error {
	if uint32(cluster) >= types.TotalClusters {
		return result.Invalid
	}
	if len(data) != types.ClusterDataSize {
		return result.Invalid
	}

	d.log.Debugf("writing cluster %#04x", cluster)
	payload := data
	if cluster < types.SuperblockStartCluster {
		encrypted, err := crypto.AesEncrypt(d.aesKey, data)
		if err != nil {
			return err
		}
		payload = encrypted
	}

	for page := uint32(0); page < types.PagesPerCluster; page++ {
		source := payload[page*types.DataBytesPerPage : (page+1)*types.DataBytesPerPage]
		offset := types.Offset(uint32(cluster), page)
		dest := d.image[offset : offset+types.DataBytesPerPage]
		copy(dest, source)

		// Rebuild the spare area. Byte 0 marks the block as good.
		spare := d.spare(cluster, page)
		for i := range spare {
			spare[i] = 0
		}
		spare[0] = 0xff
		code := ecc.Calculate(dest)
		copy(spare[types.EccOffsetInSpare:], code[:])

		switch page {
		case types.HmacPage1:
			copy(spare[types.Hmac1OffsetInPage:], mac[:])
			// First part of the second HMAC copy.
			copy(spare[types.Hmac2OffsetInPage1:types.Hmac2OffsetInPage1+types.Hmac2SizeInPage1],
				mac[:types.Hmac2SizeInPage1])
		case types.HmacPage2:
			// Rest of the second HMAC copy.
			copy(spare[types.Hmac2OffsetInPage2:types.Hmac2OffsetInPage2+types.Hmac2SizeInPage2],
				mac[types.Hmac2SizeInPage1:])
		}
	}

	return nil
}

// spare returns the 64-byte spare area of a page as a slice into the image.
func (d *Device) spare(cluster uint16, page uint32) []byte {
	offset := types.Offset(uint32(cluster), page) + types.DataBytesPerPage
	return d.image[offset : offset+types.SpareBytesPerPage]
}
