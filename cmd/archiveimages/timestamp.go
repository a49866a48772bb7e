package main

import (
	"fmt"
	"time"

	"github.com/djherbis/times"
	"github.com/rs/zerolog"
)

type candidateSource string

const (
	sourceCreated  candidateSource = "created"
	sourceModified candidateSource = "modified"
	sourceNow      candidateSource = "now"
)

type candidate struct {
	Source candidateSource
	Time   time.Time
}

// timestampResolver picks the time a picture was taken: the earliest of the
// filesystem creation and modification times, the current time, and every
// EXIF date tag that parses.
type timestampResolver struct {
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
	stat     func(path string) (times.Timespec, error)
	readTags func(path string, loc *time.Location) ([]TagReading, error)
}

func newTimestampResolver(log zerolog.Logger) *timestampResolver {
	return &timestampResolver{
		log:      log,
		loc:      time.Local,
		now:      time.Now,
		stat:     times.Stat,
		readTags: readDateTags,
	}
}

// resolve returns the earliest candidate time for path. It fails only when
// the file cannot be stat'ed; metadata problems are logged and skipped.
func (r *timestampResolver) resolve(path string) (time.Time, error) {
	candidates, err := r.candidates(path)
	if err != nil {
		return time.Time{}, err
	}

	earliest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Time.Before(earliest.Time) {
			earliest = c
		}
	}

	r.log.Debug().
		Str("path", path).
		Str("source", string(earliest.Source)).
		Time("taken", earliest.Time).
		Int("candidates", len(candidates)).
		Msg("resolved timestamp")

	return earliest.Time, nil
}

func (r *timestampResolver) candidates(path string) ([]candidate, error) {
	ts, err := r.stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	candidates := []candidate{
		{Source: sourceCreated, Time: creationTime(ts).In(r.loc)},
		{Source: sourceModified, Time: ts.ModTime().In(r.loc)},
		{Source: sourceNow, Time: r.now().In(r.loc)},
	}

	readings, err := r.readTags(path, r.loc)
	if err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("could not read metadata")
		return candidates, nil
	}

	for _, reading := range readings {
		switch reading.Status {
		case TagParsed:
			candidates = append(candidates, candidate{Source: candidateSource(reading.Tag), Time: reading.Time})
		case TagUnparsable:
			r.log.Warn().Err(reading.Err).Str("path", path).Str("tag", string(reading.Tag)).Str("value", reading.Raw).Msg("tag could not be parsed")
		case TagAbsent:
			r.log.Warn().Str("path", path).Str("tag", string(reading.Tag)).Msg("tag could not be retrieved")
		}
	}

	return candidates, nil
}

// creationTime prefers the birth time, then the inode change time, then the
// modification time, depending on what the platform records.
func creationTime(ts times.Timespec) time.Time {
	if ts.HasBirthTime() {
		return ts.BirthTime()
	}
	if ts.HasChangeTime() {
		return ts.ChangeTime()
	}
	return ts.ModTime()
}
