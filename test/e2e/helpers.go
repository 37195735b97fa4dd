package e2e

import (
	"fmt"
	"sort"
	"testing"
	"time"
)

// runOnAllConfigs runs testFunc against a fresh server per configuration.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// fixedPayloads returns count payloads of equal length, so replies can be
// split back apart without a delimiter.
func fixedPayloads(prefix string, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%05d", prefix, i)
	}
	return out
}

// readFixed reads count replies of size bytes each.
func readFixed(t *testing.T, c *Client, size, count int) []string {
	t.Helper()

	raw, err := c.ReadN(size*count, 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to read %d replies: %v (got %q)", count, err, raw)
	}
	return splitFixed(raw, size)
}

func splitFixed(raw string, size int) []string {
	out := make([]string, 0, len(raw)/size)
	for i := 0; i+size <= len(raw); i += size {
		out = append(out, raw[i:i+size])
	}
	return out
}

func assertSameReplies(t *testing.T, want, got []string) {
	t.Helper()

	want = append([]string(nil), want...)
	got = append([]string(nil), got...)
	sort.Strings(want)
	sort.Strings(got)

	if len(want) != len(got) {
		t.Fatalf("Expected %d replies, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("Reply mismatch at %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
