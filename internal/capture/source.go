// Package capture reads recorded photo sequences from disk and feeds
// consecutive pairs through the estimation pipeline.
package capture

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"orbitspeed/internal/estimation"
	"orbitspeed/internal/timeline"
)

// exifLayout is the format of EXIF DateTime fields.
const exifLayout = "2006:01:02 15:04:05"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// ErrNoTimestamp is returned when an image carries no usable capture time.
var ErrNoTimestamp = errors.New("no capture timestamp")

// Photo is one image file of a recorded sequence.
type Photo struct {
	Path       string
	CapturedAt time.Time
	FromExif   bool
}

// DirectorySource lists the photos of a directory in file name order.
type DirectorySource struct {
	Dir string
	// Size resizes every frame when non-zero.
	Size image.Point
}

// Photos returns every image in the directory with its capture time.
func (s DirectorySource) Photos() ([]Photo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Dir, err)
	}

	var photos []Photo
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		at, fromExif, err := CaptureTime(path)
		if err != nil {
			return nil, err
		}
		photos = append(photos, Photo{Path: path, CapturedAt: at, FromExif: fromExif})
	}

	sort.Slice(photos, func(i, j int) bool { return photos[i].Path < photos[j].Path })
	return photos, nil
}

// Load decodes a photo into a grayscale frame.
func (s DirectorySource) Load(p Photo) (timeline.Frame, error) {
	mat, err := estimation.Load(p.Path, s.Size)
	if err != nil {
		return timeline.Frame{}, err
	}
	return timeline.Frame{Image: mat, Timestamp: p.CapturedAt}, nil
}

// CaptureTime reads EXIF DateTimeOriginal and falls back to the file
// modification time. The EXIF value carries no zone and is read as UTC.
func CaptureTime(path string) (at time.Time, fromExif bool, err error) {
	if at, err := exifTime(path); err == nil {
		return at, true, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w for %s: %v", ErrNoTimestamp, path, err)
	}
	return info.ModTime().UTC(), false, nil
}

func exifTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		at, err := time.ParseInLocation(exifLayout, strings.TrimRight(value, "\x00 "), time.UTC)
		if err == nil {
			return at, nil
		}
	}
	return time.Time{}, ErrNoTimestamp
}
