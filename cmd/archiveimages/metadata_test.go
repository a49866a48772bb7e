package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	tagDateTime          uint16 = 0x0132
	tagExifIFDPointer    uint16 = 0x8769
	tagDateTimeOriginal  uint16 = 0x9003
	tagDateTimeDigitized uint16 = 0x9004
)

type asciiTag struct {
	id    uint16
	value string
}

// buildExifTIFF creates a little-endian TIFF block holding the given ASCII
// tags in IFD0 and, if exifTags is not empty, in an EXIF sub-IFD.
// Values are stored out of line, so they must be at least 4 characters long.
func buildExifTIFF(t *testing.T, ifd0Tags, exifTags []asciiTag) []byte {
	t.Helper()
	le := binary.LittleEndian

	dataSize := func(tags []asciiTag) int {
		n := 0
		for _, tag := range tags {
			if len(tag.value) < 4 {
				t.Fatalf("tag value %q too short for fixture", tag.value)
			}
			n += len(tag.value) + 1
		}
		return n
	}

	ifd0Count := len(ifd0Tags)
	if len(exifTags) > 0 {
		ifd0Count++
	}
	ifd0Offset := 8
	ifd0Size := 2 + 12*ifd0Count + 4
	ifd0DataOffset := ifd0Offset + ifd0Size
	exifOffset := ifd0DataOffset + dataSize(ifd0Tags)
	exifSize := 0
	if len(exifTags) > 0 {
		exifSize = 2 + 12*len(exifTags) + 4
	}
	exifDataOffset := exifOffset + exifSize
	buf := make([]byte, exifDataOffset+dataSize(exifTags))

	copy(buf[0:2], "II")
	le.PutUint16(buf[2:4], 42)
	le.PutUint32(buf[4:8], uint32(ifd0Offset))

	writeIFD := func(offset, dataOffset int, tags []asciiTag, pointer int) {
		count := len(tags)
		if pointer > 0 {
			count++
		}
		le.PutUint16(buf[offset:], uint16(count))
		entry := offset + 2
		for _, tag := range tags {
			le.PutUint16(buf[entry:], tag.id)
			le.PutUint16(buf[entry+2:], 2) // ASCII
			le.PutUint32(buf[entry+4:], uint32(len(tag.value)+1))
			le.PutUint32(buf[entry+8:], uint32(dataOffset))
			copy(buf[dataOffset:], tag.value)
			dataOffset += len(tag.value) + 1
			entry += 12
		}
		if pointer > 0 {
			le.PutUint16(buf[entry:], tagExifIFDPointer)
			le.PutUint16(buf[entry+2:], 4) // LONG
			le.PutUint32(buf[entry+4:], 1)
			le.PutUint32(buf[entry+8:], uint32(pointer))
			entry += 12
		}
		le.PutUint32(buf[entry:], 0) // no next IFD
	}

	pointer := 0
	if len(exifTags) > 0 {
		pointer = exifOffset
	}
	writeIFD(ifd0Offset, ifd0DataOffset, ifd0Tags, pointer)
	if len(exifTags) > 0 {
		writeIFD(exifOffset, exifDataOffset, exifTags, 0)
	}
	return buf
}

// writeJPEGWithExif writes a file made of a JPEG SOI, an APP1 EXIF segment
// and an EOI marker. It carries no image data, which is all the EXIF reader needs.
func writeJPEGWithExif(t *testing.T, path string, ifd0Tags, exifTags []asciiTag) {
	t.Helper()

	tiff := buildExifTIFF(t, ifd0Tags, exifTags)
	segLen := 2 + 6 + len(tiff)

	data := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(segLen >> 8), byte(segLen)}
	data = append(data, "Exif\x00\x00"...)
	data = append(data, tiff...)
	data = append(data, 0xFF, 0xD9)

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readingsByTag(readings []TagReading) map[exif.FieldName]TagReading {
	m := make(map[exif.FieldName]TagReading)
	for _, r := range readings {
		m[r.Tag] = r
	}
	return m
}

func TestReadDateTags_AllStatuses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeJPEGWithExif(t, path,
		[]asciiTag{{tagDateTime, "2020:01:05 08:09:10"}},
		[]asciiTag{{tagDateTimeOriginal, "not a date at all"}},
	)

	readings, err := readDateTags(path, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}

	byTag := readingsByTag(readings)

	dt := byTag[exif.DateTime]
	if dt.Status != TagParsed {
		t.Fatalf("DateTime status = %v, expected parsed (err: %v)", dt.Status, dt.Err)
	}
	want := time.Date(2020, 1, 5, 8, 9, 10, 0, time.UTC)
	if !dt.Time.Equal(want) {
		t.Errorf("DateTime = %v, expected %v", dt.Time, want)
	}

	orig := byTag[exif.DateTimeOriginal]
	if orig.Status != TagUnparsable {
		t.Errorf("DateTimeOriginal status = %v, expected unparsable", orig.Status)
	}
	if orig.Raw != "not a date at all" {
		t.Errorf("DateTimeOriginal raw = %q", orig.Raw)
	}
	if orig.Err == nil {
		t.Error("expected a parse error for DateTimeOriginal")
	}

	dig := byTag[exif.DateTimeDigitized]
	if dig.Status != TagAbsent {
		t.Errorf("DateTimeDigitized status = %v, expected absent", dig.Status)
	}
}

func TestReadDateTags_BareTIFF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.tif")
	tiff := buildExifTIFF(t, nil, []asciiTag{
		{tagDateTimeOriginal, "2019:03:02 10:00:00"},
		{tagDateTimeDigitized, "2019:03:04 11:00:00"},
	})
	if err := os.WriteFile(path, tiff, 0644); err != nil {
		t.Fatal(err)
	}

	readings, err := readDateTags(path, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byTag := readingsByTag(readings)

	if byTag[exif.DateTime].Status != TagAbsent {
		t.Errorf("DateTime status = %v, expected absent", byTag[exif.DateTime].Status)
	}
	if got := byTag[exif.DateTimeOriginal]; got.Status != TagParsed || !got.Time.Equal(time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("DateTimeOriginal = %+v", got)
	}
	if got := byTag[exif.DateTimeDigitized]; got.Status != TagParsed || !got.Time.Equal(time.Date(2019, 3, 4, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("DateTimeDigitized = %+v", got)
	}
}

func TestReadDateTags_NoExif(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nnot really a png"), 0644); err != nil {
		t.Fatal(err)
	}

	readings, err := readDateTags(path, time.UTC)
	if err != nil {
		t.Fatalf("missing exif should not be an error: %v", err)
	}
	if len(readings) != len(dateTags) {
		t.Fatalf("expected %d readings, got %d", len(dateTags), len(readings))
	}
	for _, r := range readings {
		if r.Status != TagAbsent {
			t.Errorf("tag %s status = %v, expected absent", r.Tag, r.Status)
		}
	}
}

func TestReadDateTags_MissingFile(t *testing.T) {
	_, err := readDateTags("/nonexistent/photo.jpg", time.UTC)
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestParseExifTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"plain", "2019:03:02 10:00:00", time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC), false},
		{"trailing nul", "2019:03:02 10:00:00\x00", time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC), false},
		{"trailing space", "2019:03:02 10:00:00  ", time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC), false},
		{"dashes", "2019-03-02 10:00:00", time.Time{}, true},
		{"blank placeholder", "    :  :     :  :  ", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExifTime(tt.raw, time.UTC)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseExifTime(%q) = %v, expected %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTagStatusString(t *testing.T) {
	tests := []struct {
		status TagStatus
		want   string
	}{
		{TagAbsent, "absent"},
		{TagParsed, "parsed"},
		{TagUnparsable, "unparsable"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("TagStatus(%d).String() = %q, expected %q", int(tt.status), got, tt.want)
		}
	}
}
