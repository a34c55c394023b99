// Package copier implements the single-pass, hash-verified, atomic copy
// primitive described in spec.md §4.2: read the source while hashing it,
// write to a temp file while hashing the write, fsync, optionally verify by
// comparing the two hashes with bounded retry, then atomically rename into
// place.
package copier

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/wnbrewery/wnbimport/internal/hasher"
	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// partialSuffix is appended to the destination path while the copy is in
// flight; the file is renamed to its final name only after any requested
// verification succeeds.
const partialSuffix = ".partial"

// MaxVerifyRetries is the number of additional attempts spec.md §4.2 step 5
// allows after a hash mismatch before giving up with VerifyMismatch.
const MaxVerifyRetries = 3

// RetryBaseDelay is the starting point of the exponential backoff between
// verify retries (spec.md §5: "per-copy-retry (exponential from 100 ms)").
const RetryBaseDelay = 100 * time.Millisecond

// Options configures a single copy operation.
type Options struct {
	Algorithm hasher.Algorithm
	BlockSize int
	Verify    bool
	Overwrite bool
}

// Result is the outcome of a successful copy.
type Result struct {
	SourceHash string
	DestHash   string
	Size       int64
	Verified   bool
	Retries    int
}

// Copy implements the algorithm of spec.md §4.2. It is safe to call
// concurrently on disjoint (src, dst) pairs; it never partially overwrites
// an existing dst — the swap is a single rename once the data (and,
// optionally, its hash) is confirmed good.
func Copy(ctx context.Context, src, dst string, opts Options) (Result, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = hasher.AlgorithmBlake3
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = hasher.DefaultBufferSize
	}

	if !opts.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return Result{}, ingesterr.New(ingesterr.KindExists, dst, "destination already exists", nil)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Result{}, ingesterr.New(ingesterr.KindWrite, dst, "failed to create destination directory", err)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxVerifyRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := copyOnce(ctx, src, dst, opts)
		if err == nil {
			result.Retries = attempt
			return result, nil
		}

		var ierr *ingesterr.Error
		if errors.As(err, &ierr) && ierr.Kind == ingesterr.KindVerifyMismatch {
			lastErr = err
			continue
		}
		return Result{}, err
	}

	return Result{}, lastErr
}

// copyOnce performs exactly one attempt: stream src into "<dst>.partial",
// hashing both sides, fsync, optionally verify, then rename into place.
func copyOnce(ctx context.Context, src, dst string, opts Options) (Result, error) {
	partial := dst + partialSuffix

	in, err := os.Open(src)
	if err != nil {
		return Result{}, ingesterr.New(ingesterr.KindRead, src, "failed to open source", err)
	}
	defer in.Close()

	out, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, ingesterr.New(ingesterr.KindWrite, partial, "failed to create partial file", err)
	}

	srcHasher, err := hasher.NewStream(opts.Algorithm)
	if err != nil {
		out.Close()
		os.Remove(partial)
		return Result{}, err
	}
	dstHasher, err := hasher.NewStream(opts.Algorithm)
	if err != nil {
		out.Close()
		os.Remove(partial)
		return Result{}, err
	}

	buf := make([]byte, opts.BlockSize)
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			os.Remove(partial)
			return Result{}, err
		}

		n, rerr := in.Read(buf)
		if n > 0 {
			block := buf[:n]
			srcHasher.Write(block)
			if _, werr := out.Write(block); werr != nil {
				out.Close()
				os.Remove(partial)
				return Result{}, ingesterr.New(ingesterr.KindWrite, partial, "failed writing block", werr)
			}
			dstHasher.Write(block)
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(partial)
			return Result{}, ingesterr.New(ingesterr.KindRead, src, "failed reading source", rerr)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(partial)
		return Result{}, ingesterr.New(ingesterr.KindWrite, partial, "fsync failed", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return Result{}, ingesterr.New(ingesterr.KindWrite, partial, "close failed", err)
	}

	srcHash := srcHasher.Sum()
	dstHash := dstHasher.Sum()
	verified := false

	if opts.Verify {
		if srcHash != dstHash {
			os.Remove(partial)
			return Result{}, ingesterr.New(ingesterr.KindVerifyMismatch, dst, "source and destination hashes differ", nil)
		}
		verified = true
	}

	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return Result{}, ingesterr.New(ingesterr.KindRename, dst, "failed to rename partial into place", err)
	}

	return Result{
		SourceHash: srcHash,
		DestHash:   dstHash,
		Size:       size,
		Verified:   verified,
	}, nil
}

// Move performs Copy followed by deleting the source, and only after
// verification has succeeded — per spec.md §4.2, "move is copy + verify +
// unlink(src) performed only after verify == true succeeds."
func Move(ctx context.Context, src, dst string, opts Options) (Result, error) {
	opts.Verify = true
	result, err := Copy(ctx, src, dst, opts)
	if err != nil {
		return Result{}, err
	}
	if err := os.Remove(src); err != nil {
		return result, ingesterr.New(ingesterr.KindWrite, src, "copy verified but failed to remove source", err)
	}
	return result, nil
}

// CleanStalePartial removes a leftover "<dst>.partial" file from a prior
// crash so the next run starts clean, per spec.md §5's cancellation
// guarantee ("no destination file is left in a .partial suffix state after
// cancellation that is not cleaned up on the next run").
func CleanStalePartial(dst string) error {
	partial := dst + partialSuffix
	err := os.Remove(partial)
	if err != nil && !os.IsNotExist(err) {
		return ingesterr.New(ingesterr.KindWrite, partial, "failed to remove stale partial file", err)
	}
	return nil
}
