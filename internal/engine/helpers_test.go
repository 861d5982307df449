package engine_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/fakedb"
)

// createTable renders a CREATE TABLE statement in SHOW CREATE TABLE layout.
func createTable(name string, lines ...string) string {
	return fmt.Sprintf("CREATE TABLE `%s` (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		name, strings.Join(lines, ",\n  "))
}

var (
	festivalsTable = createTable("festivals",
		"`festival_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`place` varchar(32) DEFAULT NULL",
		"`date` date DEFAULT NULL",
		"PRIMARY KEY (`festival_id`)")
	bandsTable = createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`genre` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)")
	schedulesTable = createTable("schedules",
		"`schedule_id` int NOT NULL AUTO_INCREMENT",
		"`festival_id` int NOT NULL",
		"`band_id` int NOT NULL",
		"`time` time NOT NULL",
		"PRIMARY KEY (`schedule_id`)",
		"CONSTRAINT `schedules_ibfk_1` FOREIGN KEY (`festival_id`) REFERENCES `festivals` (`festival_id`)",
		"CONSTRAINT `schedules_ibfk_2` FOREIGN KEY (`band_id`) REFERENCES `bands` (`band_id`)")
	managersTable = createTable("managers",
		"`manager_id` int NOT NULL AUTO_INCREMENT",
		"`first_name` varchar(32) DEFAULT NULL",
		"`last_name` varchar(32) DEFAULT NULL",
		"`email` varchar(64) DEFAULT NULL",
		"PRIMARY KEY (`manager_id`)")
)

func openManager(t *testing.T, srv *fakedb.Server, role string) *dbconn.Manager {
	t.Helper()
	m, err := dbconn.Open(context.Background(), dbconn.Config{
		Role:   role,
		Driver: fakedb.DriverName,
		DSN:    srv.DSN(),
	})
	if err != nil {
		t.Fatalf("failed to open %s: %v", role, err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func assertStrings(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", what, got, want)
		}
	}
}
