package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProvidersCmd(t *testing.T) {
	t.Parallel()

	cmd := NewProvidersCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 11 {
		t.Fatalf("got %d lines, want header and 10 providers:\n%s", len(lines), out.String())
	}
	if fields := strings.Fields(lines[0]); len(fields) != 3 || fields[0] != "LETTER" {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"BFK.de", "CIRCL", "DNSDB", "VirusTotal"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not list %s", want)
		}
	}
}

func TestProvidersCmdRejectsArgs(t *testing.T) {
	t.Parallel()

	cmd := NewProvidersCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unexpected argument")
	}
}
