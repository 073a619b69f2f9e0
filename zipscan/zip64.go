package zipscan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	zip64LocSig = 0x07064b50
	zip64EndSig = 0x06064b50

	// zip64LocSize is the fixed size of the ZIP64 EOCD locator record.
	zip64LocSize = 20

	// zip64EndFixedSize is the size of the fixed part of the ZIP64 EOCD
	// record; the "size of record" field at offset 4 excludes the first 12
	// bytes and may extend past the fixed part.
	zip64EndFixedSize = 56
)

var (
	zip64LocSigBytes = putUint32(zip64LocSig)
	zip64EndSigBytes = putUint32(zip64EndSig)
)

// zip64End is the ZIP64 end of central directory record together with the
// size of the locator that pointed at it. When present, its 64-bit fields
// take precedence over the 16/32-bit fields of the standard EOCD record
// which are pinned at their 0xffff/0xffffffff sentinels.
//
// See chapters 4.3.14 and 4.3.15 of the ZIP specification
// (https://pkware.cachefly.net/webdocs/casestudies/APPNOTE.TXT).
type zip64End struct {
	// recordSize is the full on-disk size of the ZIP64 EOCD record (the
	// "size of record" field plus the 12 leading bytes it excludes).
	recordSize int64
	// cdCount is the total number of central directory records.
	cdCount uint64
	// cdSize is the size of the central directory in bytes.
	cdSize uint64
	// cdOffset is the offset of the central directory relative to start of archive.
	cdOffset uint64
}

// overhead returns the number of bytes the ZIP64 end record and locator
// occupy between the central directory and the EOCD record. Safe on nil.
func (z *zip64End) overhead() int64 {
	if z == nil {
		return 0
	}
	return z.recordSize + zip64LocSize
}

// findZip64End looks for a ZIP64 EOCD locator in the fixed-size window
// immediately preceding eocdOffset and, when found, parses the ZIP64 end
// record it points to.
//
// Returns (nil, nil) when no locator signature is present: the archive is
// simply not ZIP64. A locator that points at garbage is an ErrFormat.
func findZip64End(src io.ReaderAt, eocdOffset int64) (*zip64End, error) {
	locOffset := eocdOffset - zip64LocSize
	if locOffset < 0 {
		return nil, nil
	}

	loc := make([]byte, zip64LocSize)
	if _, err := src.ReadAt(loc, locOffset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read ZIP64 locator error: %w", err)
	}

	if !bytes.Equal(loc[:4], zip64LocSigBytes) {
		return nil, nil
	}

	// locator layout: sig(4) disk-with-zip64-end(4) zip64-end-offset(8) disk-count(4).
	endOffset := int64(binary.LittleEndian.Uint64(loc[8:]))
	if endOffset < 0 || endOffset+zip64EndFixedSize > locOffset {
		return nil, fmt.Errorf("%w: ZIP64 end record offset 0x%x out of range", ErrFormat, endOffset)
	}

	end := make([]byte, zip64EndFixedSize)
	if _, err := src.ReadAt(end, endOffset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read ZIP64 end record error: %w", err)
	}

	return unmarshalZip64End(([zip64EndFixedSize]byte)(end))
}

// unmarshalZip64End decodes the fixed part of the ZIP64 EOCD record.
func unmarshalZip64End(b [zip64EndFixedSize]byte) (*zip64End, error) {
	data := &struct {
		Signature      uint32
		RecordSize     uint64
		CreatorVersion uint16
		ReaderVersion  uint16
		DiskNumber     uint32
		CDDiskOffset   uint32
		CDCountOnDisk  uint64
		CDCount        uint64
		CDSize         uint64
		CDOffset       uint64
	}{}

	if !bytes.Equal(b[:4], zip64EndSigBytes) {
		return nil, fmt.Errorf("%w: mismatched ZIP64 end signature, got 0x%x, expected 0x%x", ErrFormat, b[:4], zip64EndSigBytes)
	}

	if err := binary.Read(bytes.NewReader(b[:]), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("unmarshal ZIP64 end record error: %w", err)
	}

	return &zip64End{
		recordSize: int64(data.RecordSize) + 12,
		cdCount:    data.CDCount,
		cdSize:     data.CDSize,
		cdOffset:   data.CDOffset,
	}, nil
}
