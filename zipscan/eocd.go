// Package zipscan locates and parses the tail records of a ZIP archive (the
// end-of-central-directory record and its optional ZIP64 extensions) over a
// random-access byte source.
//
// The package never reads the whole archive: only a bounded tail block plus
// the central directory range are ever touched, which makes it usable over
// remote sources such as ranged S3 reads.
package zipscan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	eocdSig = 0x06054b50

	// minEOCDSize is the size of an EOCD record with an empty comment.
	minEOCDSize = 22

	// DefaultBlockSize is the default value of [Options.BlockSize].
	//
	// An archive whose EOCD record starts earlier than BlockSize bytes from
	// the end of the source (i.e. one with a very long trailing comment) is
	// not supported; Find fails with ErrFormat instead of growing the block.
	DefaultBlockSize = 256
)

var (
	// ErrFormat is returned when the source does not contain a well-formed
	// ZIP tail. All parse failures in this package wrap ErrFormat.
	ErrFormat = errors.New("not a valid ZIP archive")

	// ErrNoEOCD is returned if no EOCD signature was found within the tail
	// block. It wraps ErrFormat.
	ErrNoEOCD = fmt.Errorf("%w: end of central directory not found", ErrFormat)
)

var eocdSigBytes = putUint32(eocdSig)

func putUint32(v uint32) (b []byte) {
	b = make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// Options customises Find.
type Options struct {
	// BlockSize is the number of bytes read from the end of the source to
	// search for the EOCD signature.
	//
	// By default, DefaultBlockSize is used. The block is never grown: if the
	// EOCD record (including its comment) starts before the block, Find
	// fails with ErrNoEOCD.
	BlockSize int
}

// EOCDRecord models the end of central directory record of a ZIP file.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
//
// The record is immutable once returned by Find and safe for concurrent use.
type EOCDRecord struct {
	// DiskNumber is number of this disk (or 0xffff for ZIP64).
	DiskNumber uint16
	// CDDiskOffset is disk where central directory starts (or 0xffff for ZIP64).
	CDDiskOffset uint16
	// CDCountOnDisk is the number of central directory records on this disk (or 0xffff for ZIP64).
	CDCountOnDisk uint16
	// CDCount is the total number of central directory records (or 0xffff for ZIP64).
	CDCount uint16
	// CDSize is size of central directory (bytes) (or 0xffffffff for ZIP64).
	CDSize uint32
	// CDOffset is offset of start of central directory, relative to start of archive (or 0xffffffff for ZIP64).
	CDOffset uint32
	// Comment is the comment section of the EOCD.
	Comment string

	// offset is the absolute offset of the EOCD signature within the source.
	offset int64
	// zip64 is non-nil if a valid ZIP64 locator precedes the EOCD record.
	zip64 *zip64End
}

// Find searches the tail of src for the EOCD record and, when present, the
// ZIP64 locator and end records preceding it.
//
// Only the last [Options.BlockSize] bytes are searched. The method assumes
// src holds exactly one well-formed ZIP archive, possibly with arbitrary
// bytes prepended before the ZIP data (see [EOCDRecord.StartOfArchive]).
//
// Any malformed or truncated tail fails with an error wrapping ErrFormat;
// there is no partial result.
func Find(src io.ReaderAt, size int64, optFns ...func(*Options)) (*EOCDRecord, error) {
	opts := &Options{
		BlockSize: DefaultBlockSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if size < minEOCDSize {
		return nil, fmt.Errorf("%w: source too small (%d bytes, need at least %d)", ErrFormat, size, minEOCDSize)
	}

	block := make([]byte, min(size, int64(opts.BlockSize)))
	blockOffset := size - int64(len(block))
	if _, err := src.ReadAt(block, blockOffset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("find EOCD: read tail block error: %w", err)
	}

	// scan backwards so that the EOCD record closest to end of source wins.
	// a candidate is only accepted if its comment length makes the record
	// end exactly at end of source.
	for i := len(block) - minEOCDSize; i >= 0; i-- {
		if !bytes.Equal(block[i:i+4], eocdSigBytes) {
			continue
		}

		commentLen := int64(binary.LittleEndian.Uint16(block[i+20:]))
		offset := blockOffset + int64(i)
		if offset+minEOCDSize+commentLen != size {
			continue
		}

		r, err := unmarshalEOCDRecord(([minEOCDSize]byte)(block[i:i+minEOCDSize]), block[i+minEOCDSize:])
		if err != nil {
			return nil, fmt.Errorf("find EOCD: %w", err)
		}

		r.offset = offset

		if r.zip64, err = findZip64End(src, offset); err != nil {
			return nil, fmt.Errorf("find EOCD: %w", err)
		}

		return r, nil
	}

	return nil, ErrNoEOCD
}

// unmarshalEOCDRecord decodes the 22-byte slice as an EOCDRecord; tail holds
// whatever bytes follow the fixed part and must cover the comment.
func unmarshalEOCDRecord(b [minEOCDSize]byte, tail []byte) (*EOCDRecord, error) {
	data := &struct {
		Signature     uint32
		DiskNumber    uint16
		CDDiskOffset  uint16
		CDCountOnDisk uint16
		CDCount       uint16
		CDSize        uint32
		CDOffset      uint32
		CommentLength uint16
	}{}

	if err := binary.Read(bytes.NewReader(b[:]), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	if int(data.CommentLength) > len(tail) {
		return nil, fmt.Errorf("%w: truncated comment: need %d bytes, have %d", ErrFormat, data.CommentLength, len(tail))
	}

	return &EOCDRecord{
		DiskNumber:    data.DiskNumber,
		CDDiskOffset:  data.CDDiskOffset,
		CDCountOnDisk: data.CDCountOnDisk,
		CDCount:       data.CDCount,
		CDSize:        data.CDSize,
		CDOffset:      data.CDOffset,
		Comment:       string(tail[:data.CommentLength]),
	}, nil
}

// IsZip64 reports whether the archive carries ZIP64 end records.
func (r *EOCDRecord) IsZip64() bool {
	return r.zip64 != nil
}

// RecordCount returns the total number of central directory records,
// preferring the ZIP64 count when present.
func (r *EOCDRecord) RecordCount() int {
	if r.zip64 != nil {
		return int(r.zip64.cdCount)
	}
	return int(r.CDCount)
}

// CentralDirectory returns the absolute byte range of the central directory
// within the source, deferring to the ZIP64 end record when present.
//
// The offset accounts for any prefix bytes before the ZIP data, so it can be
// fed straight back into the same io.ReaderAt the record was found in.
func (r *EOCDRecord) CentralDirectory() (offset, length int64) {
	specified, length := r.cdOffsetAndSize()
	return r.StartOfArchive() + specified, length
}

// StartOfArchive returns the offset within the source where the archive
// actually starts. For most files the archive data starts at 0; executable
// archives with a prepended launch script start later.
//
// The offset is derived by walking backwards from end of source over the
// EOCD record, the ZIP64 records when present, and the central directory,
// then subtracting the central directory offset the records claim.
func (r *EOCDRecord) StartOfArchive() int64 {
	specified, length := r.cdOffsetAndSize()
	cdStart := r.offset - r.zip64.overhead() - length
	return cdStart - specified
}

// cdOffsetAndSize returns the central directory offset (relative to start of
// archive) and size, preferring ZIP64 fields when present.
func (r *EOCDRecord) cdOffsetAndSize() (offset, length int64) {
	if r.zip64 != nil {
		return int64(r.zip64.cdOffset), int64(r.zip64.cdSize)
	}
	return int64(r.CDOffset), int64(r.CDSize)
}
