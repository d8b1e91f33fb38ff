package source

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"tunescout/internal/models"
)

// UnknownArtist is the sentinel used when extraction cannot name an artist.
const UnknownArtist = "Unknown"

var (
	audioExtRe = regexp.MustCompile(`(?i)\.(mp3|m4a|flac|wav|ogg|opus|aac|wma)$`)
	trimEdgeRe = regexp.MustCompile(`^[\s\-_:]+|[\s\-_:]+$`)
)

// Extract parses track metadata from header bytes: ID3v2 frames first, then
// the other listed containers (FLAC and OGG vorbis comments, MP4 atoms),
// falling back to filename splitting. It always returns a usable record; a
// track whose artist cannot be determined carries the UnknownArtist sentinel.
func Extract(header []byte, fileName, filePath string) models.TrackRecord {
	if rec, ok := extractID3(header, filePath); ok {
		return rec
	}
	if rec, ok := extractContainer(header, filePath); ok {
		return rec
	}
	return ParseFilename(fileName, filePath)
}

func extractID3(header []byte, filePath string) (models.TrackRecord, bool) {
	if len(header) == 0 {
		return models.TrackRecord{}, false
	}

	t, err := id3v2.ParseReader(bytes.NewReader(header), id3v2.Options{Parse: true})
	if err != nil {
		return models.TrackRecord{}, false
	}

	title := strings.TrimSpace(t.Title())
	artist := strings.TrimSpace(t.Artist())
	if title == "" || artist == "" {
		return models.TrackRecord{}, false
	}

	rec := models.TrackRecord{
		Title:      title,
		Artist:     artist,
		Album:      strings.TrimSpace(t.Album()),
		Genre:      strings.TrimSpace(t.Genre()),
		SourcePath: filePath,
	}
	if y := t.Year(); len(y) >= 4 {
		if year, err := strconv.Atoi(y[:4]); err == nil {
			rec.Year = year
		}
	}
	return rec, true
}

// extractContainer reads vorbis comments and MP4 atoms out of the header
// bytes. Tags living past the header window (MP4 moov at the file tail) fail
// the parse and fall through to filename splitting.
func extractContainer(header []byte, filePath string) (models.TrackRecord, bool) {
	if len(header) == 0 {
		return models.TrackRecord{}, false
	}

	m, err := tag.ReadFrom(bytes.NewReader(header))
	if err != nil {
		return models.TrackRecord{}, false
	}

	title := strings.TrimSpace(m.Title())
	artist := strings.TrimSpace(m.Artist())
	if title == "" || artist == "" {
		return models.TrackRecord{}, false
	}

	return models.TrackRecord{
		Title:      title,
		Artist:     artist,
		Album:      strings.TrimSpace(m.Album()),
		Genre:      strings.TrimSpace(m.Genre()),
		Year:       m.Year(),
		SourcePath: filePath,
	}, true
}

// ParseFilename derives a record from the file name alone. The elaborate
// language-aware extraction of upstream producers is out of scope here: the
// fallback handles the common "Artist - Title" shape and otherwise uses the
// whole name as title with an unknown artist.
func ParseFilename(fileName, filePath string) models.TrackRecord {
	name := audioExtRe.ReplaceAllString(filepath.Base(fileName), "")

	artist := UnknownArtist
	title := name

	if idx := strings.LastIndex(name, " - "); idx > 0 && idx < len(name)-3 {
		artist = trimEdges(name[:idx])
		title = trimEdges(name[idx+3:])
		if artist == "" {
			artist = UnknownArtist
		}
	}

	title = trimEdges(title)
	if title == "" {
		title = name
	}

	return models.TrackRecord{
		Title:      title,
		Artist:     artist,
		SourcePath: filePath,
	}
}

func trimEdges(s string) string {
	return trimEdgeRe.ReplaceAllString(strings.TrimSpace(s), "")
}
