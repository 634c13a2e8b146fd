package postgres

import (
	"sort"
	"strings"
	"testing"
)

func TestMigrationFilesAreSortedAndPaired(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var ups, downs []string
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups = append(ups, name)
		case strings.HasSuffix(name, ".down.sql"):
			downs = append(downs, name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("expected at least one up migration")
	}
	if len(ups) != len(downs) {
		t.Fatalf("expected every up migration to have a matching down migration, got %d up and %d down", len(ups), len(downs))
	}

	sortedUps := append([]string(nil), ups...)
	sort.Strings(sortedUps)
	for i := range ups {
		if ups[i] != sortedUps[i] {
			t.Fatalf("migration order mismatch at %d: got %s want %s", i, ups[i], sortedUps[i])
		}
	}
}
