package database

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	t.Run("with password", func(t *testing.T) {
		got := DSN("app", "secret", "db.local", "3306", "market")
		want := "app:secret@tcp(db.local:3306)/market?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true"
		if got != want {
			t.Fatalf("dsn = %q, want %q", got, want)
		}
	})

	t.Run("empty password omits the colon", func(t *testing.T) {
		got := DSN("app", "", "localhost", "3306", "market")
		if !strings.HasPrefix(got, "app@tcp(") {
			t.Fatalf("dsn = %q, want bare user before @tcp", got)
		}
	})

	// The conditional updates in the repositories treat zero affected rows
	// as "predicate not met". That reading requires matched-row counting, so
	// a no-op write (same values re-submitted) is not mistaken for a miss.
	t.Run("matched-row counting is on", func(t *testing.T) {
		got := DSN("app", "secret", "localhost", "3306", "market")
		if !strings.Contains(got, "clientFoundRows=true") {
			t.Fatalf("dsn = %q, want clientFoundRows=true", got)
		}
	})
}
