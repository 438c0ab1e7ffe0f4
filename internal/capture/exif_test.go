package capture

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"orbitspeed/internal/testutil"
)

const (
	tagDateTime         = 0x0132
	tagExifIFDPointer   = 0x8769
	tagDateTimeOriginal = 0x9003

	tiffLong  = 4
	tiffASCII = 2
)

// ifdEntry appends one 12-byte little-endian IFD entry.
func ifdEntry(buf *bytes.Buffer, tag, typ uint16, count, value uint32) {
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, typ)
	binary.Write(buf, binary.LittleEndian, count)
	binary.Write(buf, binary.LittleEndian, value)
}

// exifSegment builds an APP1 segment carrying stamp either as IFD0 DateTime
// or as DateTimeOriginal in the Exif sub-IFD.
func exifSegment(stamp string, original bool) []byte {
	value := append([]byte(stamp), 0)

	tiff := &bytes.Buffer{}
	tiff.WriteString("II*\x00")
	binary.Write(tiff, binary.LittleEndian, uint32(8))

	// Each single-entry IFD is 2 + 12 + 4 bytes.
	const ifdSize = 18
	if original {
		exifIFD := uint32(8 + ifdSize)
		binary.Write(tiff, binary.LittleEndian, uint16(1))
		ifdEntry(tiff, tagExifIFDPointer, tiffLong, 1, exifIFD)
		binary.Write(tiff, binary.LittleEndian, uint32(0))

		binary.Write(tiff, binary.LittleEndian, uint16(1))
		ifdEntry(tiff, tagDateTimeOriginal, tiffASCII, uint32(len(value)), exifIFD+ifdSize)
		binary.Write(tiff, binary.LittleEndian, uint32(0))
	} else {
		binary.Write(tiff, binary.LittleEndian, uint16(1))
		ifdEntry(tiff, tagDateTime, tiffASCII, uint32(len(value)), 8+ifdSize)
		binary.Write(tiff, binary.LittleEndian, uint32(0))
	}
	tiff.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	return append(segment, payload...)
}

// writeExifJPEG stores a real JPEG with the EXIF segment spliced in after SOI
// and a modification time that disagrees with the EXIF stamp.
func writeExifJPEG(t *testing.T, path, stamp string, original bool) {
	t.Helper()
	scene, err := testutil.Scene(11)
	require.NoError(t, err)
	defer scene.Close()
	data, err := testutil.Encode(scene, gocv.JPEGFileExt)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	out := append([]byte{0xFF, 0xD8}, exifSegment(stamp, original)...)
	out = append(out, data[2:]...)
	require.NoError(t, os.WriteFile(path, out, 0644))
	require.NoError(t, os.Chtimes(path, base.Add(time.Hour), base.Add(time.Hour)))
}

func TestCaptureTime_Exif(t *testing.T) {
	tests := []struct {
		name     string
		original bool
	}{
		{"DateTimeOriginal", true},
		{"DateTime", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "iss.jpg")
			writeExifJPEG(t, path, "2024:02:12 10:00:07", tt.original)

			at, fromExif, err := CaptureTime(path)
			require.NoError(t, err)
			assert.True(t, fromExif)
			assert.Equal(t, time.Date(2024, 2, 12, 10, 0, 7, 0, time.UTC), at)
		})
	}
}

func TestCaptureTime_UnparsableExifFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iss.jpg")
	writeExifJPEG(t, path, "yesterday at noon", true)

	at, fromExif, err := CaptureTime(path)
	require.NoError(t, err)
	assert.False(t, fromExif)
	assert.True(t, at.Equal(base.Add(time.Hour)))
}

func TestDirectorySource_PrefersExif(t *testing.T) {
	dir := t.TempDir()
	writeExifJPEG(t, filepath.Join(dir, "a.jpg"), "2024:02:12 10:00:00", true)
	writeExifJPEG(t, filepath.Join(dir, "b.jpg"), "2024:02:12 10:00:05", true)

	photos, err := DirectorySource{Dir: dir}.Photos()
	require.NoError(t, err)
	require.Len(t, photos, 2)
	for _, p := range photos {
		assert.True(t, p.FromExif, p.Path)
	}
	assert.Equal(t, 5*time.Second, photos[1].CapturedAt.Sub(photos[0].CapturedAt))
}
