// Package imagemeta reads the file-level metadata the catalog stores
// for each photo: size, modification time, pixel dimensions, and a
// display title derived from the filename.
package imagemeta

import (
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	// Dimension decoders. Stdlib covers jpeg/png/gif; x/image adds the
	// secondary formats the watcher accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	syncerrors "github.com/pixelgrove/photosync/internal/errors"
)

// Metadata describes a single image file on disk. Width and Height are
// nil when the dimensions could not be decoded; RAW and corrupt files
// are still cataloged, just without them.
type Metadata struct {
	FileSize   int64
	Width      *int
	Height     *int
	ModifiedAt time.Time // UTC
}

// Extract stats path and decodes its pixel dimensions from the image
// header. A stat failure returns a typed file error; a decode failure
// is not an error and only leaves Width and Height nil.
func Extract(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, syncerrors.NewFileError("stat", path, err)
	}
	meta := Metadata{
		FileSize:   info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}
	if w, h, err := decodeDimensions(path); err == nil {
		meta.Width = &w
		meta.Height = &h
	}
	return meta, nil
}

// decodeDimensions reads only the image header, never the full pixel
// data.
func decodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Title derivation strips the noise cameras and phones put into
// filenames. Prefix matching is case sensitive: "IMG_1234" is camera
// output, "img_1234" was named by a person. Date tokens only match
// calendar-plausible values so "20999999_party" keeps its digits.
var (
	cameraPrefix    = regexp.MustCompile(`^(IMG|DSC|DSCN|P|PIC|PHOTO|IMAGE)[-_]`)
	compactDate     = regexp.MustCompile(`[-_]?20\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])[-_]?`)
	separatedDate   = regexp.MustCompile(`[-_]?20\d{2}[-_](0[1-9]|1[0-2])[-_](0[1-9]|[12]\d|3[01])[-_]?`)
	timestampToken  = regexp.MustCompile(`[-_]?([01]\d|2[0-3])[-_:]?([0-5]\d)[-_:]?([0-5]\d)[-_]?`)
	leadingCounter  = regexp.MustCompile(`^[-_]?\d{1,4}[-_]`)
	trailingCounter = regexp.MustCompile(`[-_]\d{1,4}$`)
	separatorRun    = regexp.MustCompile(`[-_]+`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// TitleFromFilename derives a human-readable title from an image
// filename: strip the extension, camera prefix, date and time stamps,
// and numeric counters, then title-case what survives. When stripping
// consumes everything the raw stem is title-cased instead, so a pure
// timestamp name still yields a visible title.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}

	name := cameraPrefix.ReplaceAllString(stem, "")
	name = compactDate.ReplaceAllString(name, "_")
	name = separatedDate.ReplaceAllString(name, "_")
	name = timestampToken.ReplaceAllString(name, "_")
	name = leadingCounter.ReplaceAllString(name, "")
	name = trailingCounter.ReplaceAllString(name, "")
	name = separatorRun.ReplaceAllString(name, " ")
	name = spaceRun.ReplaceAllString(name, " ")
	if name = titleCase(strings.TrimSpace(name)); name != "" {
		return name
	}

	fallback := strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	fallback = spaceRun.ReplaceAllString(fallback, " ")
	return titleCase(strings.TrimSpace(fallback))
}

// titleCase upper-cases each letter that follows a non-letter and
// lower-cases the rest. Digits count as word boundaries, so
// "4x4 offroad" becomes "4X4 Offroad".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
