package ioengine

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// --- Buffered: mid-size files, bufio.Reader over a plain os.File. ---

func (e *Engine) readBuffered(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, strategyError(StrategyBuffered, path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, int(e.cfg.BufferSize))
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, strategyError(StrategyBuffered, path, err)
	}
	return data, nil
}

func (e *Engine) readBufferedChunks(ctx context.Context, path string, fn ChunkFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return strategyError(StrategyBuffered, path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, int(e.cfg.BufferSize))
	buf := make([]byte, e.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := fn(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return strategyError(StrategyBuffered, path, readErr)
		}
	}
}

// --- MemoryMap: large files, read-only mmap via edsrzf/mmap-go. ---

func (e *Engine) readMemoryMapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, strategyError(StrategyMemoryMap, path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, strategyError(StrategyMemoryMap, path, err)
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}

func (e *Engine) readMemoryMappedChunks(path string, fn ChunkFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return strategyError(StrategyMemoryMap, path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return strategyError(StrategyMemoryMap, path, err)
	}
	defer m.Unmap()

	chunk := int(e.cfg.ChunkSize)
	for off := 0; off < len(m); off += chunk {
		end := off + chunk
		if end > len(m) {
			end = len(m)
		}
		if err := fn(m[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// --- Async: small files, chunked reads dispatched to a goroutine so
// the caller's channel-select loop stays responsive to cancellation
// between chunks, rather than blocking uninterruptibly inside a single
// read(2) call. ---

type asyncChunk struct {
	data []byte
	err  error
}

func (e *Engine) readAsyncWhole(ctx context.Context, path string) ([]byte, error) {
	var all []byte
	err := e.readAsyncChunks(ctx, path, func(chunk []byte) error {
		all = append(all, chunk...)
		return nil
	})
	return all, err
}

func (e *Engine) readAsyncChunks(ctx context.Context, path string, fn ChunkFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return strategyError(StrategyAsync, path, err)
	}
	defer f.Close()

	chunks := make(chan asyncChunk, 2)
	done := make(chan struct{})
	go func() {
		defer close(chunks)
		buf := make([]byte, e.cfg.ChunkSize)
		for {
			select {
			case <-done:
				return
			default:
			}
			n, readErr := f.Read(buf)
			if n > 0 {
				out := make([]byte, n)
				copy(out, buf[:n])
				chunks <- asyncChunk{data: out}
			}
			if readErr != nil {
				if readErr != io.EOF {
					chunks <- asyncChunk{err: readErr}
				}
				return
			}
		}
	}()
	defer close(done)

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return nil
			}
			if c.err != nil {
				return strategyError(StrategyAsync, path, c.err)
			}
			if err := fn(c.data); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
