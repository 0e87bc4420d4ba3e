package handler

import (
	"testing"

	"github.com/dushixiang/kestrel/internal/service"
)

func TestParseLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", service.DefaultSnapshotLimit},
		{"abc", service.DefaultSnapshotLimit},
		{"0", service.DefaultSnapshotLimit},
		{"-5", service.DefaultSnapshotLimit},
		{"1", 1},
		{"50", 50},
		{"100", 100},
		{"101", 100},
		{"9999", 100},
	}
	for _, c := range cases {
		if got := parseLimit(c.raw); got != c.want {
			t.Errorf("parseLimit(%q) 应为 %d，实际 %d", c.raw, c.want, got)
		}
	}
}
