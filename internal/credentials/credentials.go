// Package credentials persists and verifies the admin and per-student
// password hashes that gate enrollment, registry mutation and session
// administration.
//
// The digest is sha256(password + salt) in hex with one store-wide salt,
// kept for compatibility with existing credential files. That construction
// is not production grade; deployments should at minimum supply their own
// salt through configuration.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

const (
	// TempAdminPassword is written at first bootstrap and must be changed.
	TempAdminPassword = "admin123"

	AdminUsername     = "admin"
	defaultAdminEmail = "admin@system.com"

	MinPasswordLength = 6
)

// Store holds the admin credential file and the directory of per-student
// hash files.
type Store struct {
	adminFile string
	dir       string
	salt      string
	logger    *zap.Logger
}

func New(adminFile, dir, salt string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{adminFile: adminFile, dir: dir, salt: salt, logger: logger}
}

// Hash is the deterministic one-way digest of a password under the store
// salt.
func (s *Store) Hash(password string) string {
	sum := sha256.Sum256([]byte(password + s.salt))
	return hex.EncodeToString(sum[:])
}

func (s *Store) studentFile(id string) string {
	return filepath.Join(s.dir, id+"_psd.txt")
}

// DefaultStudentPassword derives the initial password handed out at first
// enrollment: the first six characters of the id, lowercased, plus "123".
func DefaultStudentPassword(id string) string {
	prefix := id
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return strings.ToLower(prefix) + "123"
}

// writeAtomic replaces path with content through a temp file and rename,
// so a failed write never leaves a partial credential file.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return faults.IO("creating credential directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return faults.IO("creating temp credential file: %v", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	if _, err := tmp.WriteString(content); err != nil {
		return faults.IO("writing credential file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return faults.IO("closing temp credential file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return faults.IO("replacing credential file: %v", err)
	}
	return nil
}

// BootstrapAdmin creates the admin credential with the fixed temporary
// password when no admin file exists yet. Returns true when it did.
func (s *Store) BootstrapAdmin() (bool, error) {
	if _, err := os.Stat(s.adminFile); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, faults.IO("stat admin file: %v", err)
	}
	line := fmt.Sprintf("%s,%s,%s", AdminUsername, s.Hash(TempAdminPassword), defaultAdminEmail)
	if err := writeAtomic(s.adminFile, line); err != nil {
		return false, err
	}
	s.logger.Info("admin account bootstrapped", zap.String("username", AdminUsername))
	return true, nil
}

// readAdmin returns the username, hash and email fields of the admin file.
func (s *Store) readAdmin() (username, hash, email string, err error) {
	data, err := os.ReadFile(s.adminFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", "", faults.NotFound("admin credential file missing")
		}
		return "", "", "", faults.IO("reading admin file: %v", err)
	}
	fields := strings.Split(strings.TrimSpace(string(data)), ",")
	if len(fields) < 2 {
		return "", "", "", faults.IO("admin credential file is malformed")
	}
	username, hash = fields[0], fields[1]
	if len(fields) > 2 {
		email = fields[2]
	}
	return username, hash, email, nil
}

// VerifyAdmin checks the admin username and password.
func (s *Store) VerifyAdmin(username, password string) (bool, error) {
	storedUser, storedHash, _, err := s.readAdmin()
	if err != nil {
		if faults.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return username == storedUser && s.Hash(password) == storedHash, nil
}

// AdminEmail returns the email stored alongside the admin credential.
func (s *Store) AdminEmail() (string, error) {
	_, _, email, err := s.readAdmin()
	return email, err
}

// CreateStudent writes the credential file for a newly enrolled student
// with the derived default password. Returns the default password and true
// when the file was created; an existing credential is left untouched.
func (s *Store) CreateStudent(id string) (string, bool, error) {
	if id == "" {
		return "", false, faults.Validation("student id is required")
	}
	path := s.studentFile(id)
	if _, err := os.Stat(path); err == nil {
		return "", false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, faults.IO("stat student credential: %v", err)
	}
	password := DefaultStudentPassword(id)
	if err := writeAtomic(path, s.Hash(password)); err != nil {
		return "", false, err
	}
	s.logger.Info("student credential created", zap.String("id", id))
	return password, true, nil
}

// VerifyStudent checks a student's password against the stored hash.
func (s *Store) VerifyStudent(id, password string) (bool, error) {
	data, err := os.ReadFile(s.studentFile(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, faults.IO("reading student credential: %v", err)
	}
	return strings.TrimSpace(string(data)) == s.Hash(password), nil
}

// validateChange applies the shared password-change rules.
func validateChange(current, newPassword, confirm string) error {
	if current == "" || newPassword == "" || confirm == "" {
		return faults.Validation("all password fields are required")
	}
	if len(newPassword) < MinPasswordLength {
		return faults.Validation("new password must be at least %d characters", MinPasswordLength)
	}
	if newPassword != confirm {
		return faults.Validation("new password and confirmation do not match")
	}
	return nil
}

// ChangeAdmin replaces the admin password after validating the change and
// proving the current password. The stored hash is overwritten atomically.
func (s *Store) ChangeAdmin(current, newPassword, confirm string) error {
	if err := validateChange(current, newPassword, confirm); err != nil {
		return err
	}
	username, hash, email, err := s.readAdmin()
	if err != nil {
		return err
	}
	if s.Hash(current) != hash {
		return faults.Validation("current password is incorrect")
	}
	line := fmt.Sprintf("%s,%s,%s", username, s.Hash(newPassword), email)
	if err := writeAtomic(s.adminFile, line); err != nil {
		return err
	}
	s.logger.Info("admin password changed")
	return nil
}

// ChangeStudent replaces a student password under the same rules.
func (s *Store) ChangeStudent(id, current, newPassword, confirm string) error {
	if err := validateChange(current, newPassword, confirm); err != nil {
		return err
	}
	ok, err := s.VerifyStudent(id, current)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Validation("current password is incorrect")
	}
	if err := writeAtomic(s.studentFile(id), s.Hash(newPassword)); err != nil {
		return err
	}
	s.logger.Info("student password changed", zap.String("id", id))
	return nil
}

// ResetStudent overwrites a student credential with the derived default
// password and returns it. Admin-gated at the call site.
func (s *Store) ResetStudent(id string) (string, error) {
	if id == "" {
		return "", faults.Validation("student id is required")
	}
	if _, err := os.Stat(s.studentFile(id)); errors.Is(err, os.ErrNotExist) {
		return "", faults.NotFound("no credential for student %s", id)
	}
	password := DefaultStudentPassword(id)
	if err := writeAtomic(s.studentFile(id), s.Hash(password)); err != nil {
		return "", err
	}
	s.logger.Info("student password reset", zap.String("id", id))
	return password, nil
}

// RemoveStudent deletes a student credential file as part of the cascade
// when a registration is removed. Missing files are not an error.
func (s *Store) RemoveStudent(id string) error {
	err := os.Remove(s.studentFile(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return faults.IO("removing student credential: %v", err)
	}
	return nil
}
