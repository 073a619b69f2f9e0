package zipscan

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

const (
	lfhSig  = 0x04034b50
	cdfhSig = 0x02014b50

	// fixed-part sizes of the local and central directory file headers.
	lfhFixedSize  = 30
	cdfhFixedSize = 46
)

var (
	lfhSigBytes  = putUint32(lfhSig)
	cdfhSigBytes = putUint32(cdfhSig)
)

// FileHeader is a central directory file header extended with the absolute
// offset of its local file header within the source.
type FileHeader struct {
	zip.FileHeader

	// DiskNumber is the disk number where the file starts. Multi-disk
	// archives are not supported; the field is informational only.
	DiskNumber uint16

	// Offset is the absolute offset of the local file header within the
	// byte source, i.e. already adjusted for any prefix bytes before the
	// archive proper.
	Offset int64
}

// Entries returns an iterator over the central directory file headers of the
// archive described by this record.
//
// src must be the same byte source the record was found in. Iteration stops
// at the first error; a well-formed archive yields exactly RecordCount
// headers. Because reads go through io.ReaderAt with explicit offsets, the
// returned headers may be used concurrently once collected.
func (r *EOCDRecord) Entries(src io.ReaderAt) iter.Seq2[*FileHeader, error] {
	cdOffset, cdLength := r.CentralDirectory()
	startOfArchive := r.StartOfArchive()

	return func(yield func(*FileHeader, error) bool) {
		var (
			// bb is the dynamic buffer that stores data from previous reads.
			bb = &bytes.Buffer{}
			// buf is the fixed-size read buffer for every src.ReadAt.
			buf = make([]byte, 16*1024)
			// offset is the next offset to use with src.ReadAt, bounded by
			// the end of the central directory.
			offset = cdOffset
			end    = cdOffset + cdLength
		)

		fill := func(n int) error {
			for bb.Len() < n && offset < end {
				m := min(int64(len(buf)), end-offset)
				switch k, err := src.ReadAt(buf[:m], offset); {
				case err != nil && !errors.Is(err, io.EOF):
					return err
				case k == 0:
					return io.ErrUnexpectedEOF
				default:
					bb.Write(buf[:k])
					offset += int64(k)
				}
			}
			return nil
		}

		for count := r.RecordCount(); count > 0; count-- {
			if err := fill(cdfhFixedSize); err != nil {
				yield(nil, fmt.Errorf("read CD file header error: %w", err))
				return
			}

			if bb.Len() < cdfhFixedSize {
				yield(nil, fmt.Errorf("%w: truncated central directory: need %d bytes, have %d", ErrFormat, cdfhFixedSize, bb.Len()))
				return
			}

			fh, err := unmarshalCDFileHeader(([cdfhFixedSize]byte)(bb.Next(cdfhFixedSize)), func(b []byte) (int, error) {
				if err := fill(len(b)); err != nil {
					return 0, err
				}
				return copy(b, bb.Next(len(b))), nil
			})
			if err != nil {
				yield(nil, fmt.Errorf("read CD file header error: %w", err))
				return
			}

			fh.Offset += startOfArchive

			if !yield(fh, nil) {
				return
			}
		}
	}
}

// DataOffset reads the local file header that this header points at and
// returns the absolute offset of the entry's compressed data within src.
func (fh *FileHeader) DataOffset(src io.ReaderAt) (int64, error) {
	b := make([]byte, lfhFixedSize)
	if _, err := src.ReadAt(b, fh.Offset); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read local file header error: %w", err)
	}

	if !bytes.Equal(b[:4], lfhSigBytes) {
		return 0, fmt.Errorf("%w: mismatched local file header signature at 0x%x, got 0x%x", ErrFormat, fh.Offset, b[:4])
	}

	// the local header repeats name and extra with lengths at offsets 26 and
	// 28; extra may differ from the central directory copy so it must be
	// read from here.
	nameLen := int64(binary.LittleEndian.Uint16(b[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(b[28:]))
	return fh.Offset + lfhFixedSize + nameLen + extraLen, nil
}

// unmarshalCDFileHeader decodes the 46-byte slice as a FileHeader.
// read will always be called to retrieve the variable-size part of the
// header; if there is no variable-size part, read is passed an empty slice.
func unmarshalCDFileHeader(b [cdfhFixedSize]byte, read func(b []byte) (int, error)) (*FileHeader, error) {
	data := &struct {
		Signature         uint32
		CreatorVersion    uint16
		ReaderVersion     uint16
		Flags             uint16
		Method            uint16
		ModifiedTime      uint16
		ModifiedDate      uint16
		CRC32             uint32
		CompressedSize    uint32
		UncompressedSize  uint32
		FileNameLength    uint16
		ExtraFieldLength  uint16
		FileCommentLength uint16
		DiskNumber        uint16
		InternalAttrs     uint16
		ExternalAttrs     uint32
		Offset            uint32
	}{}

	if !bytes.Equal(cdfhSigBytes, b[:4]) {
		return nil, fmt.Errorf("%w: mismatched signature, got 0x%x, expected 0x%x", ErrFormat, b[:4], cdfhSigBytes)
	}

	if err := binary.Read(bytes.NewReader(b[:]), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	fh := &FileHeader{
		FileHeader: zip.FileHeader{
			CreatorVersion:     data.CreatorVersion,
			ReaderVersion:      data.ReaderVersion,
			Flags:              data.Flags,
			Method:             data.Method,
			ModifiedTime:       data.ModifiedTime,
			ModifiedDate:       data.ModifiedDate,
			CRC32:              data.CRC32,
			CompressedSize:     data.CompressedSize,
			UncompressedSize:   data.UncompressedSize,
			CompressedSize64:   uint64(data.CompressedSize),
			UncompressedSize64: uint64(data.UncompressedSize),
			ExternalAttrs:      data.ExternalAttrs,
		},
		DiskNumber: data.DiskNumber,
		Offset:     int64(data.Offset),
	}
	fh.Modified = msDosTimeToTime(fh.ModifiedDate, fh.ModifiedTime)

	n, m, k := data.FileNameLength, data.ExtraFieldLength, data.FileCommentLength
	nmkLen := int(n) + int(m) + int(k)
	nmk := make([]byte, nmkLen)
	switch readN, err := read(nmk); {
	case err != nil && !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("read variable-size data error: %w", err)
	case readN < nmkLen:
		return nil, fmt.Errorf("read variable-size data error: insufficient read: expected at least %d bytes, got %d", nmkLen, readN)
	default:
		fh.Name, fh.Extra, fh.Comment = string(nmk[:n]), nmk[n:int(n)+int(m)], string(nmk[int(n)+int(m):])
	}

	if err := applyZip64Extra(fh); err != nil {
		return nil, err
	}

	return fh, nil
}

// applyZip64Extra promotes 32-bit sentinel fields to their 64-bit values
// from the 0x0001 extended-information extra field, when present.
//
// Per the ZIP64 specification the extra field only carries values for the
// fields that are pinned at their sentinels, in a fixed order: uncompressed
// size, compressed size, local header offset, disk number.
func applyZip64Extra(fh *FileHeader) error {
	for extra := fh.Extra; len(extra) >= 4; {
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if size > len(extra)-4 {
			return fmt.Errorf("%w: truncated extra field for %q", ErrFormat, fh.Name)
		}

		body := extra[4 : 4+size]
		extra = extra[4+size:]

		if tag != 0x0001 {
			continue
		}

		take := func() (uint64, bool) {
			if len(body) < 8 {
				return 0, false
			}
			v := binary.LittleEndian.Uint64(body)
			body = body[8:]
			return v, true
		}

		if fh.UncompressedSize == 0xffffffff {
			if v, ok := take(); ok {
				fh.UncompressedSize64 = v
			}
		}
		if fh.CompressedSize == 0xffffffff {
			if v, ok := take(); ok {
				fh.CompressedSize64 = v
			}
		}
		if fh.Offset == 0xffffffff {
			if v, ok := take(); ok {
				fh.Offset = int64(v)
			}
		}
		return nil
	}

	return nil
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
//
// taken from https://go.dev/src/archive/zip/struct.go.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}
