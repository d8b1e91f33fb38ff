package source

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestParseFilename(t *testing.T) {
	cases := []struct {
		in     string
		artist string
		title  string
	}{
		{"Fujii Kaze - Shinunoga E-Wa.mp3", "Fujii Kaze", "Shinunoga E-Wa"},
		{"YOASOBI - 夜に駆ける.flac", "YOASOBI", "夜に駆ける"},
		{"Daft Punk - One More Time.MP3", "Daft Punk", "One More Time"},
		// Only the last separator splits, keeping hyphenated artist names.
		{"Jay-Z - 99 Problems.m4a", "Jay-Z", "99 Problems"},
		{"track01.mp3", "Unknown", "track01"},
		{"Lemon.opus", "Unknown", "Lemon"},
		// A hyphen without surrounding spaces is part of the title.
		{"a-ha Take On Me.ogg", "Unknown", "a-ha Take On Me"},
		{"  Artist  -  Title  .wav", "Artist", "Title"},
		// A trailing separator with nothing after it is not a split point.
		{"Artist - .mp3", "Unknown", "Artist"},
		{"notes.txt", "Unknown", "notes.txt"},
	}
	for _, tc := range cases {
		rec := ParseFilename(tc.in, "/music/"+tc.in)
		if rec.Artist != tc.artist || rec.Title != tc.title {
			t.Errorf("ParseFilename(%q) = (%q, %q), want (%q, %q)",
				tc.in, rec.Artist, rec.Title, tc.artist, tc.title)
		}
		if rec.SourcePath != "/music/"+tc.in {
			t.Errorf("ParseFilename(%q) path = %q", tc.in, rec.SourcePath)
		}
	}
}

// flacHeader builds a minimal FLAC stream: the magic plus one final
// vorbis-comment metadata block carrying the given KEY=value fields.
func flacHeader(t *testing.T, fields ...string) []byte {
	t.Helper()

	var payload bytes.Buffer
	vendor := "reference libFLAC 1.3.2"
	binary.Write(&payload, binary.LittleEndian, uint32(len(vendor)))
	payload.WriteString(vendor)
	binary.Write(&payload, binary.LittleEndian, uint32(len(fields)))
	for _, f := range fields {
		binary.Write(&payload, binary.LittleEndian, uint32(len(f)))
		payload.WriteString(f)
	}

	var out bytes.Buffer
	out.WriteString("fLaC")
	out.WriteByte(0x80 | 0x04) // final block, type 4 = vorbis comment
	n := payload.Len()
	out.Write([]byte{byte(n >> 16), byte(n >> 8), byte(n)})
	out.Write(payload.Bytes())
	return out.Bytes()
}

func TestExtract_FLACVorbisComments(t *testing.T) {
	header := flacHeader(t,
		"TITLE=Plastic Love",
		"ARTIST=Mariya Takeuchi",
		"ALBUM=Variety",
		"GENRE=City Pop",
	)

	rec := Extract(header, "plastic_love.flac", "/m/plastic_love.flac")
	if rec.Title != "Plastic Love" || rec.Artist != "Mariya Takeuchi" {
		t.Fatalf("got (%q, %q)", rec.Title, rec.Artist)
	}
	if rec.Album != "Variety" || rec.Genre != "City Pop" {
		t.Errorf("container tags lost: album %q genre %q", rec.Album, rec.Genre)
	}
}

func TestExtract_FLACWithoutArtistFallsBack(t *testing.T) {
	header := flacHeader(t, "TITLE=Nameless")

	rec := Extract(header, "Somebody - Nameless.flac", "/m/n.flac")
	if rec.Artist != "Somebody" || rec.Title != "Nameless" {
		t.Errorf("got (%q, %q)", rec.Artist, rec.Title)
	}
}

func TestExtract_FallsBackOnGarbageHeader(t *testing.T) {
	rec := Extract([]byte("not an id3 tag at all"), "Queen - Bohemian Rhapsody.mp3", "/m/q.mp3")
	if rec.Artist != "Queen" || rec.Title != "Bohemian Rhapsody" {
		t.Errorf("got (%q, %q)", rec.Artist, rec.Title)
	}
}

func TestExtract_EmptyHeader(t *testing.T) {
	rec := Extract(nil, "mystery.mp3", "/m/mystery.mp3")
	if rec.Artist != UnknownArtist || rec.Title != "mystery" {
		t.Errorf("got (%q, %q)", rec.Artist, rec.Title)
	}
	if rec.HasUnknownArtist() != true {
		t.Error("unknown sentinel must be reported")
	}
}
