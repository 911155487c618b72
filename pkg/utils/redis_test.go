package utils

import "testing"

func TestIdentityLockScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if identityLockAcquireScript == nil || identityLockReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
