// Package storageclass classifies a filesystem path into a storage class so
// the pipeline can pick per-stage concurrency, block size, and inter-op
// delay, per spec.md §5's table.
package storageclass

import (
	"regexp"
	"strings"
	"time"

	"github.com/wnbrewery/wnbimport/internal/hasher"
)

// Class is the storage category a path is assigned to.
type Class int

const (
	Local Class = iota
	Camera
	Network
	Unknown
)

func (c Class) String() string {
	switch c {
	case Local:
		return "local"
	case Camera:
		return "camera"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// Profile bundles the concurrency knobs spec.md §5's table assigns per
// storage class.
type Profile struct {
	Class            Class
	HashConcurrency  int
	CopyConcurrency  int
	BlockSize        int
	InterOpDelay     time.Duration
}

var networkPrefixes = []string{"smb://", "nfs://", "afp://", "\\\\"}

// cameraVolumePattern matches common removable-media mount naming
// conventions: DCIM-style card volumes and drive-letter-looking roots.
var cameraVolumePattern = regexp.MustCompile(`(?i)(/Volumes/(NO[_ ]?NAME|UNTITLED|EOS_DIGITAL|CANON|NIKON|SONY|SD[_ ]?CARD|SDCARD)|^[A-Za-z]:\\)`)

// Classify applies the path-prefix heuristics of spec.md §5 to choose a
// storage class: explicit network schemes/UNC prefixes beat known
// removable-media volume-name patterns, which beat a default of local; a
// class of Unknown is reserved for paths Classify cannot confidently place,
// which callers decide by policy (Classify never itself returns Unknown
// today, since every path either is or isn't under a recognized prefix, but
// Unknown remains available for future heuristics and is covered by the
// profile table).
func Classify(path string) Class {
	for _, p := range networkPrefixes {
		if strings.HasPrefix(strings.ToLower(path), p) {
			return Network
		}
	}
	if cameraVolumePattern.MatchString(path) {
		return Camera
	}
	return Local
}

// ProfileFor returns the full concurrency/block-size/delay profile for a
// class, per spec.md §5's table.
func ProfileFor(class Class) Profile {
	switch class {
	case Camera:
		return Profile{Class: class, HashConcurrency: 2, CopyConcurrency: 2, BlockSize: hasher.BlockSizeFor(hasher.StorageCamera), InterOpDelay: 10 * time.Millisecond}
	case Network:
		return Profile{Class: class, HashConcurrency: 1, CopyConcurrency: 1, BlockSize: hasher.BlockSizeFor(hasher.StorageNetwork), InterOpDelay: 50 * time.Millisecond}
	case Unknown:
		return Profile{Class: class, HashConcurrency: 2, CopyConcurrency: 2, BlockSize: hasher.BlockSizeFor(hasher.StorageUnknown), InterOpDelay: 10 * time.Millisecond}
	default:
		return Profile{Class: Local, HashConcurrency: localConcurrency(), CopyConcurrency: localConcurrency(), BlockSize: hasher.BlockSizeFor(hasher.StorageLocal), InterOpDelay: 0}
	}
}

// localConcurrency implements max(1, cpus-1) from spec.md §5's local-SSD row.
func localConcurrency() int {
	n := numCPU()
	if n <= 1 {
		return 1
	}
	return n - 1
}
