package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifTimeLayout is the fixed layout of EXIF date fields ("YYYY:MM:DD HH:MM:SS").
const exifTimeLayout = "2006:01:02 15:04:05"

// dateTags are the EXIF fields consulted for the time a picture was taken.
var dateTags = []exif.FieldName{
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
}

// TagStatus is the outcome of looking up a single date tag.
type TagStatus int

const (
	TagAbsent TagStatus = iota
	TagParsed
	TagUnparsable
)

func (s TagStatus) String() string {
	switch s {
	case TagParsed:
		return "parsed"
	case TagUnparsable:
		return "unparsable"
	default:
		return "absent"
	}
}

// TagReading is the outcome of looking up one date tag. Time is set only
// for TagParsed; Raw only when the tag was found; Err explains the other cases.
type TagReading struct {
	Tag    exif.FieldName
	Status TagStatus
	Raw    string
	Time   time.Time
	Err    error
}

// readDateTags opens path and reports on every tag in dateTags. A file without
// a readable EXIF block yields all tags as absent; only a failure to open the
// file is returned as an error.
func readDateTags(path string, loc *time.Location) ([]TagReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	readings := make([]TagReading, 0, len(dateTags))

	x, err := exif.Decode(f)
	if x == nil {
		// No EXIF at all
		for _, name := range dateTags {
			readings = append(readings, TagReading{Tag: name, Status: TagAbsent, Err: fmt.Errorf("no exif data: %w", err)})
		}
		return readings, nil
	}

	for _, name := range dateTags {
		readings = append(readings, readDateTag(x, name, loc))
	}
	return readings, nil
}

func readDateTag(x *exif.Exif, name exif.FieldName, loc *time.Location) TagReading {
	reading := TagReading{Tag: name}

	tag, err := x.Get(name)
	if err != nil {
		reading.Status = TagAbsent
		reading.Err = err
		return reading
	}

	raw, err := tag.StringVal()
	if err != nil {
		reading.Status = TagUnparsable
		reading.Raw = tag.String()
		reading.Err = err
		return reading
	}
	reading.Raw = raw

	t, err := parseExifTime(raw, loc)
	if err != nil {
		reading.Status = TagUnparsable
		reading.Err = err
		return reading
	}

	reading.Status = TagParsed
	reading.Time = t
	return reading
}

func parseExifTime(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimRight(raw, "\x00 ")
	t, err := time.ParseInLocation(exifTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exif date %q: %w", value, err)
	}
	return t, nil
}
