package security

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestIsDangerousDefaultDenylist(t *testing.T) {
	c := NewChecker(logrus.New())

	cases := []struct {
		cmd       string
		dangerous bool
	}{
		{"FLUSHALL", true},
		{"SHUTDOWN", true},
		{"config", true},
		{"GET", false},
		{"SET", false},
	}

	for _, tc := range cases {
		if got := c.IsDangerous(tc.cmd); got != tc.dangerous {
			t.Errorf("IsDangerous(%q) = %v, want %v", tc.cmd, got, tc.dangerous)
		}
	}
}

func TestAddAndRemoveCommand(t *testing.T) {
	c := NewChecker(logrus.New())

	if c.IsDangerous("GET") {
		t.Fatal("GET should not start dangerous")
	}
	c.AddCommand("get")
	if !c.IsDangerous("GET") {
		t.Fatal("GET should be dangerous after AddCommand")
	}
	c.RemoveCommand("GET")
	if c.IsDangerous("GET") {
		t.Fatal("GET should not be dangerous after RemoveCommand")
	}
}

func TestGetStatsCountsInspectionsAndBlocks(t *testing.T) {
	c := NewChecker(logrus.New())

	c.IsDangerous("GET")
	c.IsDangerous("FLUSHALL")

	stats := c.GetStats()
	if stats["inspected_count"] != int64(2) {
		t.Errorf("inspected_count = %v, want 2", stats["inspected_count"])
	}
	if stats["blocked_count"] != int64(1) {
		t.Errorf("blocked_count = %v, want 1", stats["blocked_count"])
	}
}

func TestReset(t *testing.T) {
	c := NewChecker(logrus.New())
	c.IsDangerous("FLUSHALL")
	c.Reset()

	stats := c.GetStats()
	if stats["inspected_count"] != int64(0) || stats["blocked_count"] != int64(0) {
		t.Errorf("counters not reset: %+v", stats)
	}
}
