package registry

import (
	"path/filepath"
	"testing"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "data", "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestKey(t *testing.T) {
	if got := Key("  Fujii Kaze ", "Shinunoga E-Wa"); got != "fujii kaze|shinunoga e-wa" {
		t.Errorf("Key = %q", got)
	}
}

func TestRegistry_LookupAbsent(t *testing.T) {
	r := openTestRegistry(t)

	m, err := r.Lookup("nobody|nothing")
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("absent key must return nil, got %+v", m)
	}
}

func TestRegistry_StoreAndLookup(t *testing.T) {
	r := openTestRegistry(t)
	key := Key("Fujii Kaze", "Matsuri")

	err := r.Store(Mapping{TrackKey: key, TrackID: "tk1", ArtistID: "ar1", ArtistName: "Fujii Kaze"})
	if err != nil {
		t.Fatal(err)
	}

	m, err := r.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.TrackID != "tk1" || m.ArtistID != "ar1" || m.ArtistName != "Fujii Kaze" {
		t.Errorf("got %+v", m)
	}
}

func TestRegistry_UpsertKeepsFilledColumns(t *testing.T) {
	r := openTestRegistry(t)
	key := Key("Kenshi Yonezu", "Lemon")

	if err := r.Store(Mapping{TrackKey: key, TrackID: "old", ArtistID: "ar2", ArtistName: "Kenshi Yonezu"}); err != nil {
		t.Fatal(err)
	}
	// A later match with a bare track id refreshes the id without erasing
	// the artist columns.
	if err := r.Store(Mapping{TrackKey: key, TrackID: "new"}); err != nil {
		t.Fatal(err)
	}

	m, err := r.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	if m.TrackID != "new" {
		t.Errorf("track id not refreshed: %+v", m)
	}
	if m.ArtistID != "ar2" || m.ArtistName != "Kenshi Yonezu" {
		t.Errorf("artist columns erased: %+v", m)
	}
}

func TestRegistry_IgnoresIncompleteMappings(t *testing.T) {
	r := openTestRegistry(t)

	if err := r.Store(Mapping{TrackKey: "k", TrackID: ""}); err != nil {
		t.Fatal(err)
	}
	if err := r.Store(Mapping{TrackKey: "", TrackID: "tk"}); err != nil {
		t.Fatal(err)
	}
	if m, _ := r.Lookup("k"); m != nil {
		t.Errorf("incomplete mapping must not persist: %+v", m)
	}
}

func TestRegistry_NilHandle(t *testing.T) {
	var r *Registry

	if m, err := r.Lookup("any"); m != nil || err != nil {
		t.Errorf("nil registry lookup = (%+v, %v)", m, err)
	}
	if err := r.Store(Mapping{TrackKey: "k", TrackID: "t"}); err != nil {
		t.Errorf("nil registry store = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("nil registry close = %v", err)
	}
}
