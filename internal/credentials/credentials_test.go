package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "admin_info.txt"), dir, "test_salt", nil)
}

func TestHashDeterministicAndSaltSensitive(t *testing.T) {
	s := newTestStore(t)
	if s.Hash("secret") != s.Hash("secret") {
		t.Error("same password must hash identically")
	}
	if len(s.Hash("secret")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(s.Hash("secret")))
	}

	other := New(s.adminFile, s.dir, "other_salt", nil)
	if s.Hash("secret") == other.Hash("secret") {
		t.Error("different salts must produce different hashes")
	}
}

func TestDefaultStudentPassword(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"CS2021001", "cs2021123"},
		{"AB12", "ab12123"},
		{"XYZXYZ", "xyzxyz123"},
	}
	for _, tt := range tests {
		if got := DefaultStudentPassword(tt.id); got != tt.want {
			t.Errorf("DefaultStudentPassword(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestBootstrapAdmin(t *testing.T) {
	s := newTestStore(t)

	created, err := s.BootstrapAdmin()
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !created {
		t.Fatal("expected first bootstrap to create the admin file")
	}

	ok, err := s.VerifyAdmin(AdminUsername, TempAdminPassword)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("temporary admin password must verify after bootstrap")
	}

	email, err := s.AdminEmail()
	if err != nil {
		t.Fatalf("admin email: %v", err)
	}
	if email != "admin@system.com" {
		t.Errorf("email = %q", email)
	}

	// Second bootstrap must not reset an existing credential.
	if err := s.ChangeAdmin(TempAdminPassword, "newsecret", "newsecret"); err != nil {
		t.Fatalf("change admin: %v", err)
	}
	created, err = s.BootstrapAdmin()
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if created {
		t.Error("bootstrap must be a no-op when the admin file exists")
	}
	if ok, _ := s.VerifyAdmin(AdminUsername, "newsecret"); !ok {
		t.Error("changed password lost after second bootstrap")
	}
}

func TestVerifyAdminRejections(t *testing.T) {
	s := newTestStore(t)

	// No admin file yet: verification fails without error.
	ok, err := s.VerifyAdmin(AdminUsername, TempAdminPassword)
	if err != nil {
		t.Fatalf("verify without file: %v", err)
	}
	if ok {
		t.Error("verification must fail when no admin file exists")
	}

	if _, err := s.BootstrapAdmin(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.VerifyAdmin(AdminUsername, "wrong"); ok {
		t.Error("wrong password accepted")
	}
	if ok, _ := s.VerifyAdmin("root", TempAdminPassword); ok {
		t.Error("wrong username accepted")
	}
}

func TestChangeAdminValidation(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.BootstrapAdmin(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                 string
		current, next, again string
	}{
		{"blank fields", "", "newsecret", "newsecret"},
		{"too short", TempAdminPassword, "abc", "abc"},
		{"mismatch", TempAdminPassword, "newsecret", "different"},
		{"wrong current", "wrong", "newsecret", "newsecret"},
	}
	for _, tt := range tests {
		err := s.ChangeAdmin(tt.current, tt.next, tt.again)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !faults.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
		// The failed change must leave the old password working.
		if ok, _ := s.VerifyAdmin(AdminUsername, TempAdminPassword); !ok {
			t.Errorf("%s: old password no longer verifies", tt.name)
		}
	}
}

func TestStudentLifecycle(t *testing.T) {
	s := newTestStore(t)
	id := "CS2021001"

	password, created, err := s.CreateStudent(id)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created || password != "cs2021123" {
		t.Fatalf("create returned (%q, %v)", password, created)
	}

	// Re-enrollment keeps the existing credential.
	if _, created, _ := s.CreateStudent(id); created {
		t.Error("second create must not overwrite the credential")
	}

	if ok, _ := s.VerifyStudent(id, password); !ok {
		t.Error("default password must verify")
	}
	if ok, _ := s.VerifyStudent(id, "wrong"); ok {
		t.Error("wrong password accepted")
	}
	if ok, _ := s.VerifyStudent("unknown", password); ok {
		t.Error("unknown student verified")
	}

	if err := s.ChangeStudent(id, password, "fresh-secret", "fresh-secret"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if ok, _ := s.VerifyStudent(id, password); ok {
		t.Error("old password still verifies after change")
	}
	if ok, _ := s.VerifyStudent(id, "fresh-secret"); !ok {
		t.Error("new password does not verify")
	}

	reset, err := s.ResetStudent(id)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset != "cs2021123" {
		t.Errorf("reset password = %q", reset)
	}
	if ok, _ := s.VerifyStudent(id, reset); !ok {
		t.Error("reset password does not verify")
	}

	if err := s.RemoveStudent(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := s.VerifyStudent(id, reset); ok {
		t.Error("credential still verifies after removal")
	}
	// Removing again is fine.
	if err := s.RemoveStudent(id); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestResetUnknownStudent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ResetStudent("CS2021001")
	if err == nil {
		t.Fatal("expected error")
	}
	if !faults.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestChangeStudentWrongCurrentLeavesHash(t *testing.T) {
	s := newTestStore(t)
	id := "CS2021001"
	password, _, err := s.CreateStudent(id)
	if err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadFile(s.studentFile(id))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ChangeStudent(id, "wrong1", "newsecret", "newsecret"); err == nil {
		t.Fatal("expected error for wrong current password")
	}

	after, err := os.ReadFile(s.studentFile(id))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("credential file changed despite rejected request")
	}
	if ok, _ := s.VerifyStudent(id, password); !ok {
		t.Error("original password no longer verifies")
	}
}
