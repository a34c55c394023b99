// Package classify detects the category, MIME type, and extension-mismatch
// status of a file by magic bytes with an extension fallback, per
// spec.md §4.4.
package classify

import (
	"bytes"
	"os"
	"strings"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// Category is one of the archival categories spec.md §2 enumerates.
type Category string

const (
	CategoryImage      Category = "image"
	CategoryVideo      Category = "video"
	CategoryAudio      Category = "audio"
	CategoryDocument   Category = "document"
	CategoryArchive    Category = "archive"
	CategorySidecar    Category = "sidecar"
	CategoryEbook      Category = "ebook"
	CategoryExecutable Category = "executable"
	CategoryData       Category = "data"
	CategoryOther      Category = "other"
)

// Result is the outcome of classifying one file.
type Result struct {
	Category          Category
	Subcategory        string
	MIMEType           string
	DetectedExtension  string
	DeclaredExtension  string
	ExtensionMismatch  bool
}

type magicRule struct {
	signature []byte
	ext       string
	mime      string
	category  Category
}

// magicTable holds enough common signatures to classify the media types an
// ingestion job typically sees. Extractors (EXIF/ffprobe/etc.) remain an
// external collaborator; this table only distinguishes broad category.
var magicTable = []magicRule{
	{signature: []byte{0xFF, 0xD8, 0xFF}, ext: ".jpg", mime: "image/jpeg", category: CategoryImage},
	{signature: []byte("\x89PNG\r\n\x1a\n"), ext: ".png", mime: "image/png", category: CategoryImage},
	{signature: []byte("II*\x00"), ext: ".tif", mime: "image/tiff", category: CategoryImage}, // also covers many RAW formats (CR2, NEF, ARW, etc.)
	{signature: []byte("MM\x00*"), ext: ".tif", mime: "image/tiff", category: CategoryImage},
	{signature: []byte("GIF87a"), ext: ".gif", mime: "image/gif", category: CategoryImage},
	{signature: []byte("GIF89a"), ext: ".gif", mime: "image/gif", category: CategoryImage},
	{signature: []byte("ID3"), ext: ".mp3", mime: "audio/mpeg", category: CategoryAudio},
	{signature: []byte("fLaC"), ext: ".flac", mime: "audio/flac", category: CategoryAudio},
	{signature: []byte("%PDF"), ext: ".pdf", mime: "application/pdf", category: CategoryDocument},
	{signature: []byte("PK\x03\x04"), ext: ".zip", mime: "application/zip", category: CategoryArchive}, // also the container of docx/xlsx/epub, which are reported as zip
	{signature: []byte{0x1F, 0x8B}, ext: ".gz", mime: "application/gzip", category: CategoryArchive},
	{signature: []byte("7z\xBC\xAF\x27\x1C"), ext: ".7z", mime: "application/x-7z-compressed", category: CategoryArchive},
	{signature: []byte("Rar!\x1A\x07"), ext: ".rar", mime: "application/x-rar-compressed", category: CategoryArchive},
	{signature: []byte{0x4D, 0x5A}, ext: ".exe", mime: "application/x-msdownload", category: CategoryExecutable},
	{signature: []byte{0x7F, 'E', 'L', 'F'}, ext: "", mime: "application/x-elf", category: CategoryExecutable},
}

// ftypBrands maps ISO-BMFF "ftyp" brand prefixes to a category/extension,
// covering MP4/MOV/M4A/HEIC family containers that all share the same box
// structure but differ by brand.
var ftypBrands = map[string]struct {
	ext      string
	mime     string
	category Category
}{
	"qt  ": {".mov", "video/quicktime", CategoryVideo},
	"isom": {".mp4", "video/mp4", CategoryVideo},
	"MSNV": {".mp4", "video/mp4", CategoryVideo},
	"mp41": {".mp4", "video/mp4", CategoryVideo},
	"mp42": {".mp4", "video/mp4", CategoryVideo},
	"M4A ": {".m4a", "audio/mp4", CategoryAudio},
	"heic": {".heic", "image/heic", CategoryImage},
	"heix": {".heic", "image/heic", CategoryImage},
}

// extensionOnlyCategory covers sidecar-type files classified purely by
// extension (spec.md §4.4: "A small set of extensions ... are classified
// purely by extension").
var extensionOnlyCategory = map[string]Category{
	".xmp": CategorySidecar,
	".aae": CategorySidecar,
	".srt": CategorySidecar,
	".thm": CategorySidecar,
	".lrf": CategorySidecar,
}

// extensionFallback maps declared extensions to a category/mime used when
// magic detection yields nothing.
var extensionFallback = map[string]struct {
	mime     string
	category Category
}{
	".jpg": {"image/jpeg", CategoryImage}, ".jpeg": {"image/jpeg", CategoryImage},
	".png": {"image/png", CategoryImage}, ".tif": {"image/tiff", CategoryImage}, ".tiff": {"image/tiff", CategoryImage},
	".cr2": {"image/x-canon-cr2", CategoryImage}, ".cr3": {"image/x-canon-cr3", CategoryImage},
	".nef": {"image/x-nikon-nef", CategoryImage}, ".arw": {"image/x-sony-arw", CategoryImage},
	".dng": {"image/x-adobe-dng", CategoryImage}, ".raf": {"image/x-fuji-raf", CategoryImage},
	".heic": {"image/heic", CategoryImage}, ".webp": {"image/webp", CategoryImage},
	".mp4": {"video/mp4", CategoryVideo}, ".mov": {"video/quicktime", CategoryVideo},
	".avi": {"video/x-msvideo", CategoryVideo}, ".mts": {"video/mp2t", CategoryVideo},
	".m2ts": {"video/mp2t", CategoryVideo}, ".tod": {"video/mp2t", CategoryVideo}, ".moi": {"text/plain", CategorySidecar},
	".wav": {"audio/wav", CategoryAudio}, ".mp3": {"audio/mpeg", CategoryAudio}, ".flac": {"audio/flac", CategoryAudio},
	".m4a": {"audio/mp4", CategoryAudio}, ".aac": {"audio/aac", CategoryAudio},
	".pdf": {"application/pdf", CategoryDocument}, ".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", CategoryDocument},
	".doc": {"application/msword", CategoryDocument}, ".txt": {"text/plain", CategoryDocument},
	".zip": {"application/zip", CategoryArchive}, ".tar": {"application/x-tar", CategoryArchive},
	".epub": {"application/epub+zip", CategoryEbook}, ".mobi": {"application/x-mobipocket-ebook", CategoryEbook},
	".exe": {"application/x-msdownload", CategoryExecutable},
	".xmp": {"application/rdf+xml", CategorySidecar}, ".aae": {"text/xml", CategorySidecar},
	".srt": {"application/x-subrip", CategorySidecar}, ".thm": {"image/jpeg", CategorySidecar},
}

// readHeaderBytes is the number of leading bytes read for magic detection;
// large enough to cover an ISO-BMFF ftyp box (12 bytes box header + brand).
const readHeaderBytes = 32

// Classify determines category/mime/extension-mismatch for path.
func Classify(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, ingesterr.New(ingesterr.KindRead, path, "failed to open file for classification", err)
	}
	defer f.Close()

	header := make([]byte, readHeaderBytes)
	n, _ := f.Read(header)
	header = header[:n]

	declaredExt := strings.ToLower(extOf(path))

	if cat, ok := extensionOnlyCategory[declaredExt]; ok {
		return Result{
			Category:          cat,
			MIMEType:          mimeFor(declaredExt),
			DeclaredExtension: declaredExt,
			DetectedExtension: declaredExt,
			ExtensionMismatch: false,
		}, nil
	}

	detectedExt, mime, category := detectMagic(header)

	result := Result{
		Category:          category,
		MIMEType:          mime,
		DetectedExtension: detectedExt,
		DeclaredExtension: declaredExt,
	}

	if detectedExt == "" {
		if fb, ok := extensionFallback[declaredExt]; ok {
			result.Category = fb.category
			result.MIMEType = fb.mime
			result.DetectedExtension = declaredExt
		} else {
			result.Category = CategoryOther
			result.MIMEType = "application/octet-stream"
		}
	}

	if declaredExt != "" && result.DetectedExtension != "" && declaredExt != result.DetectedExtension {
		result.ExtensionMismatch = true
	}

	return result, nil
}

func detectMagic(header []byte) (ext, mime string, category Category) {
	if len(header) >= 12 && string(header[4:8]) == "ftyp" {
		brand := string(header[8:12])
		if info, ok := ftypBrands[brand]; ok {
			return info.ext, info.mime, info.category
		}
		return ".mp4", "video/mp4", CategoryVideo
	}

	if bytes.HasPrefix(header, []byte("RIFF")) && len(header) >= 12 {
		switch string(header[8:12]) {
		case "WAVE":
			return ".wav", "audio/wav", CategoryAudio
		case "AVI ":
			return ".avi", "video/x-msvideo", CategoryVideo
		case "WEBP":
			return ".webp", "image/webp", CategoryImage
		}
	}

	for _, rule := range magicTable {
		if bytes.HasPrefix(header, rule.signature) {
			return rule.ext, rule.mime, rule.category
		}
	}

	return "", "", CategoryOther
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexAny(path, "/\\")
	if idx == -1 || idx < slash {
		return ""
	}
	return path[idx:]
}

func mimeFor(ext string) string {
	if fb, ok := extensionFallback[ext]; ok {
		return fb.mime
	}
	return "application/octet-stream"
}
