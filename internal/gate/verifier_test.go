package gate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVerifierApproveAndOpenExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(target, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(dir, true)
	ap, err := v.Approve("file.txt")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !ap.ExistedAtApprove {
		t.Fatal("expected ExistedAtApprove true")
	}

	f, err := v.OpenExisting(ap, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	defer f.Close()
}

func TestVerifierDetectsIdentityChangeBetweenApproveAndOpen(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.txt")
	os.WriteFile(target, []byte("hello"), 0o644)

	v := NewVerifier(dir, true)
	ap, err := v.Approve("file.txt")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Simulate a TOCTOU swap: remove and recreate with a different inode.
	os.Remove(target)
	os.WriteFile(target, []byte("swapped"), 0o644)

	if _, err := v.OpenExisting(ap, os.O_RDONLY, 0); err == nil {
		t.Fatal("expected PathChanged error after identity swap")
	} else if gerr, ok := err.(*Error); !ok || gerr.Kind != ErrPathChanged {
		t.Fatalf("expected ErrPathChanged, got %v", err)
	}
}

func TestVerifierCreateNewAtomic(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(dir, true)

	ap, err := v.Approve("new.txt")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ap.ExistedAtApprove {
		t.Fatal("expected ExistedAtApprove false for nonexistent file")
	}

	f, err := v.CreateNew(ap, 0o644)
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	f.Close()

	// CreateNew must fail when the file appears after Approve: new2.txt is
	// written between the two calls, simulating a race where something else
	// created it first.
	ap2, _ := v.Approve("new2.txt")
	os.WriteFile(filepath.Join(dir, "new2.txt"), []byte("raced"), 0o644)
	if _, err := v.CreateNew(ap2, 0o644); err == nil {
		t.Fatal("expected AlreadyExists error when file appears before create")
	}
}

func TestVerifierRejectsWorkspaceEscape(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(dir, true)
	if _, err := v.Approve("../../../../etc/passwd"); err == nil {
		t.Fatal("expected rejection of workspace-escaping path")
	}
}

func TestVerifierRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	os.WriteFile(outsideFile, []byte("secret"), 0o644)

	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	v := NewVerifier(dir, true)
	if _, err := v.Approve("link.txt"); err == nil {
		t.Fatal("expected rejection of symlink escaping workspace")
	}
}
