package session

import (
	"testing"

	"sentilytics/internal/types"
)

// memKV is an in-memory KV for tests.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) SaveKV(key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *memKV) LoadKV(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) DeleteKV(key string) error {
	delete(m.data, key)
	return nil
}

func TestLoginAssignsRoles(t *testing.T) {
	kv := newMemKV()

	admin, err := Login(kv, "admin@example.com", "Root")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if admin.Role != types.RoleAdmin {
		t.Errorf("role = %q, want admin", admin.Role)
	}

	user, err := Login(kv, "Alice@Example.com", "Alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != types.RoleUser {
		t.Errorf("role = %q, want user", user.Role)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
}

func TestLoginRejectsInvalidEmail(t *testing.T) {
	kv := newMemKV()
	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := Login(kv, email, ""); err == nil {
			t.Errorf("Login(%q) accepted an invalid email", email)
		}
	}
	if len(kv.data) != 0 {
		t.Error("invalid login persisted state")
	}
}

func TestCurrentRoundTrip(t *testing.T) {
	kv := newMemKV()

	if _, ok, err := Current(kv); err != nil || ok {
		t.Fatalf("Current on empty kv: ok=%v err=%v", ok, err)
	}

	want, err := Login(kv, "bob@example.com", "Bob")
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := Current(kv)
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("Current = %+v, want %+v", got, want)
	}
}

func TestLogoutClearsIdentity(t *testing.T) {
	kv := newMemKV()
	if _, err := Login(kv, "bob@example.com", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := Logout(kv); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := Current(kv); ok {
		t.Error("identity survived logout")
	}
}

func TestFilterAdminSeesAll(t *testing.T) {
	corpus := []types.FeedbackRecord{
		{ID: "a", UserEmail: "x@example.com"},
		{ID: "b", UserEmail: "y@example.com"},
	}
	admin := types.User{Email: "admin@example.com", Role: types.RoleAdmin}

	got := Filter(admin, corpus)
	if len(got) != 2 {
		t.Errorf("admin sees %d records, want 2", len(got))
	}
}

func TestFilterUserSeesOwn(t *testing.T) {
	corpus := []types.FeedbackRecord{
		{ID: "a", UserEmail: "x@example.com"},
		{ID: "b", UserEmail: "y@example.com"},
		{ID: "c", UserEmail: "x@example.com"},
	}
	user := types.User{Email: "x@example.com", Role: types.RoleUser}

	got := Filter(user, corpus)
	if len(got) != 2 {
		t.Fatalf("user sees %d records, want 2", len(got))
	}
	// Relative order preserved.
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("order = [%s %s], want [a c]", got[0].ID, got[1].ID)
	}
}

func TestFilterUserWithNoRecords(t *testing.T) {
	corpus := []types.FeedbackRecord{{ID: "a", UserEmail: "x@example.com"}}
	user := types.User{Email: "nobody@example.com", Role: types.RoleUser}
	if got := Filter(user, corpus); len(got) != 0 {
		t.Errorf("got %d records, want none", len(got))
	}
}
