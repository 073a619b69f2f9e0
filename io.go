package jarl

import (
	"context"
	"fmt"
	"io"
)

// CopyBufferWithContext is a custom implementation of io.CopyBuffer that is
// cancellable via context.
//
// Similar to io.CopyBuffer, if buf is nil, a new buffer of size 32*1024 is
// created. Unlike io.CopyBuffer, it does not matter if src implements
// [io.WriterTo] or dst implements [io.ReaderFrom] because those interfaces
// do not support context.
//
// The context is checked for done status after every write, so too small a
// buffer introduces overhead while a very large one delays cancellation.
func CopyBufferWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) error {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	for {
		nr, err := src.Read(buf)

		if nr > 0 {
			switch nw, werr := dst.Write(buf[:nr]); {
			case werr != nil:
				return werr
			case nw < nr:
				return io.ErrShortWrite
			case nw > nr:
				return fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
