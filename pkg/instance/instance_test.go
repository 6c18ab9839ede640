package instance

import "testing"

func TestGetIDPrefersConfiguredID(t *testing.T) {
	t.Setenv("DRIVE_INSTANCE_ID", "cron-7")
	if got := GetID(); got != "cron-7" {
		t.Fatalf("expected cron-7, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("DRIVE_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty id")
	}
}
