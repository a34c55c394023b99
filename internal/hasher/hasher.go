// Package hasher provides streaming, multi-algorithm file hashing. The
// primary algorithm is BLAKE3, with a 16-hex-character truncated short form
// used as the canonical content identifier; SHA-256 and SHA-512 are
// available as secondary algorithms for the Bag emitter.
package hasher

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"sync"
	"time"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
	"github.com/zeebo/blake3"
)

// Algorithm identifies a supported hash function.
type Algorithm string

const (
	AlgorithmBlake3   Algorithm = "blake3"
	AlgorithmBlake316 Algorithm = "blake3-16"
	AlgorithmSHA256   Algorithm = "sha256"
	AlgorithmSHA512   Algorithm = "sha512"
)

// ShortLength is the number of hex characters kept for the BLAKE3-16 short
// identifier (16 hex chars = 64 bits, the first half of the 32-byte digest).
const ShortLength = 16

// DefaultBufferSize is used for local SSD storage; see BlockSizeFor for the
// per-storage-class table from spec.md §5.
const DefaultBufferSize = 1024 * 1024 // 1 MiB

// StorageClass mirrors internal/storageclass.Class without importing it, to
// keep hasher dependency-free; the pipeline passes the already-classified
// block size in rather than re-deriving it here.
type StorageClass int

const (
	StorageLocal StorageClass = iota
	StorageCamera
	StorageNetwork
	StorageUnknown
)

// BlockSizeFor returns the recommended read block size for a storage class,
// per spec.md §5's table ("local SSD" 64KiB-1MiB -> use 1MiB; "camera
// media" -> 256KiB; "network" -> 1MiB; "unknown" -> 128KiB). Tiny files
// always use 64KiB regardless of class, decided by the caller comparing
// against the file size.
func BlockSizeFor(class StorageClass) int {
	switch class {
	case StorageCamera:
		return 256 * 1024
	case StorageNetwork:
		return 1024 * 1024
	case StorageUnknown:
		return 128 * 1024
	default:
		return DefaultBufferSize
	}
}

// TinyFileThreshold is the size below which a file is hashed with the
// smallest block size (64KiB) regardless of storage class.
const TinyFileThreshold = 64 * 1024

// TinyBlockSize is the read block size used for files under TinyFileThreshold.
const TinyBlockSize = 64 * 1024

// Result is the outcome of hashing a single file with a single algorithm.
type Result struct {
	Hash       string
	Size       int64
	Algorithm  Algorithm
	DurationMs int64
}

// AllResult is the outcome of HashAll: one read updating three algorithms.
type AllResult struct {
	Blake3 string
	SHA256 string
	SHA512 string
	Size   int64
}

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

func getBuffer(size int) []byte {
	bufPtr, _ := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	return buf[:size]
}

func putBuffer(buf []byte) {
	if cap(buf) >= DefaultBufferSize {
		b := buf[:DefaultBufferSize]
		bufferPool.Put(&b)
	}
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case AlgorithmBlake3, AlgorithmBlake316:
		return blake3.New(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	default:
		return nil, ingesterr.New(ingesterr.KindAlgorithmUnavailable, "", string(alg)+" is not a supported hash algorithm", nil)
	}
}

// TruncateShort truncates a lowercase-hex BLAKE3 digest to its canonical
// 16-hex-character short form.
func TruncateShort(fullHex string) string {
	if len(fullHex) <= ShortLength {
		return fullHex
	}
	return fullHex[:ShortLength]
}

// Hash computes the digest of path under the given algorithm using a single
// streaming read, per spec.md §4.1.
func Hash(path string, algorithm Algorithm, blockSize int) (Result, error) {
	start := time.Now()
	if blockSize <= 0 {
		blockSize = DefaultBufferSize
	}

	h, err := newHash(algorithm)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, ingesterr.New(ingesterr.KindRead, path, "failed to open file", err)
	}
	defer f.Close()

	buf := getBuffer(blockSize)
	defer putBuffer(buf)

	var size int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{}, ingesterr.New(ingesterr.KindRead, path, "failed to read file", rerr)
		}
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if algorithm == AlgorithmBlake316 {
		digest = TruncateShort(digest)
	}

	return Result{
		Hash:       digest,
		Size:       size,
		Algorithm:  algorithm,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// HashAll computes BLAKE3, SHA-256, and SHA-512 digests of path in a single
// streaming read, updating all three hash states per block, per spec.md §4.1.
func HashAll(path string, blockSize int) (AllResult, error) {
	if blockSize <= 0 {
		blockSize = DefaultBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return AllResult{}, ingesterr.New(ingesterr.KindRead, path, "failed to open file", err)
	}
	defer f.Close()

	b3 := blake3.New()
	s256 := sha256.New()
	s512 := sha512.New()

	buf := getBuffer(blockSize)
	defer putBuffer(buf)

	var size int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			block := buf[:n]
			var wg sync.WaitGroup
			wg.Add(3)
			go func() { defer wg.Done(); b3.Write(block) }()
			go func() { defer wg.Done(); s256.Write(block) }()
			go func() { defer wg.Done(); s512.Write(block) }()
			wg.Wait()
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return AllResult{}, ingesterr.New(ingesterr.KindRead, path, "failed to read file", rerr)
		}
	}

	return AllResult{
		Blake3: hex.EncodeToString(b3.Sum(nil)),
		SHA256: hex.EncodeToString(s256.Sum(nil)),
		SHA512: hex.EncodeToString(s512.Sum(nil)),
		Size:   size,
	}, nil
}

// StreamHasher lets a caller feed bytes incrementally (e.g. while they are
// simultaneously being written to a destination by the copier) and read the
// resulting digest on demand. This is the "hash while writing" mode of
// spec.md §4.1.
type StreamHasher struct {
	h   hash.Hash
	alg Algorithm
}

// NewStream creates a StreamHasher for the given algorithm.
func NewStream(algorithm Algorithm) (*StreamHasher, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return nil, err
	}
	return &StreamHasher{h: h, alg: algorithm}, nil
}

// Write feeds a block into the running hash. It never returns an error
// (hash.Hash.Write never fails) but matches io.Writer for convenience.
func (s *StreamHasher) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum returns the current hex digest without finalizing the underlying hash
// state (callers may keep writing after calling Sum).
func (s *StreamHasher) Sum() string {
	digest := hex.EncodeToString(s.h.Sum(nil))
	if s.alg == AlgorithmBlake316 {
		digest = TruncateShort(digest)
	}
	return digest
}
