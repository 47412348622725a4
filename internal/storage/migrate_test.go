package storage

import "testing"

func TestLoadMigrationsSortedByVersion(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Fatalf("migrations not strictly increasing: %d then %d", migrations[i-1].Version, migrations[i].Version)
		}
	}
}

func TestHexIDRoundTripsLength(t *testing.T) {
	var id [16]byte
	for i := range id {
		id[i] = byte(i)
	}
	got := hexID(id)
	if len(got) != 32 {
		t.Fatalf("hexID length = %d, want 32", len(got))
	}
	if got != "000102030405060708090a0b0c0d0e0f" {
		t.Fatalf("hexID = %q", got)
	}
}
