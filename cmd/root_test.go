package cmd

import (
	"context"
	"strings"
	"testing"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	err := Execute(context.Background(), []string{"--version"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			err := Execute(context.Background(), args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-l", "-p", "53333", "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-l", "--dry-run", // listen without -p
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

// TestExecute_ClientDefaults verifies the bare hostname form picks the
// standard port.
func TestExecute_ClientDefaults(t *testing.T) {
	err := Execute(context.Background(), []string{
		"chat.example.com", "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_BadPort verifies an out-of-range port is rejected.
func TestExecute_BadPort(t *testing.T) {
	err := Execute(context.Background(), []string{
		"chat.example.com", "99999", "--dry-run",
	})
	if err == nil {
		t.Fatal("expected error for port out of range")
	}
	if !strings.Contains(err.Error(), "port") {
		t.Errorf("error should mention the port: %v", err)
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	err := Execute(context.Background(), []string{"--nonexistent-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_TunnelListen verifies a server cannot sit behind a tunnel.
func TestExecute_TunnelListen(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-l", "-p", "53333", "-T", "admin@bastion", "--dry-run",
	})
	if err == nil {
		t.Fatal("expected error for listen through tunnel")
	}
}

// TestExecute_BadTunnelSpec verifies a malformed -T value is rejected.
func TestExecute_BadTunnelSpec(t *testing.T) {
	err := Execute(context.Background(), []string{
		"chat.example.com", "-T", "host:notaport", "--dry-run",
	})
	if err == nil {
		t.Fatal("expected error for bad tunnel spec")
	}
}

// TestExecute_TimeoutOrdering verifies the handshake window must not
// exceed the idle window.
func TestExecute_TimeoutOrdering(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-l", "-p", "53333",
		"--handshake-timeout", "600", "--idle-timeout", "30",
		"--dry-run",
	})
	if err == nil {
		t.Fatal("expected error for handshake > idle")
	}
}
