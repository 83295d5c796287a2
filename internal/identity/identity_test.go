package identity

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.AddUser("ada", "hunter2"); err != nil {
		t.Fatal(err)
	}
	if !db.Check("ada", "hunter2") {
		t.Fatal("correct password should pass")
	}
	if db.Check("ada", "wrong") {
		t.Fatal("wrong password should fail")
	}
	if db.Check("ghost", "hunter2") {
		t.Fatal("unknown user should fail")
	}
}

func TestAddUserDuplicate(t *testing.T) {
	db := openTestDB(t)
	if err := db.AddUser("ada", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.AddUser("ada", "b"); err == nil {
		t.Fatal("duplicate username should fail")
	}
}
