// Package session resolves the caller identity and scopes the corpus
// to what that identity may see. Admins see everything; regular users
// only their own submissions.
package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"sentilytics/internal/logging"
	"sentilytics/internal/types"
)

// userKey is the kv key holding the logged-in user.
const userKey = "sentilytics_user"

// KV is the persistence surface sessions need. *store.Store satisfies it.
type KV interface {
	SaveKV(key string, value []byte) error
	LoadKV(key string) ([]byte, bool, error)
	DeleteKV(key string) error
}

// Filter returns the slice of the corpus visible to the user, keeping
// relative order. Admins see the whole corpus; others only records
// matching their email.
func Filter(user types.User, corpus []types.FeedbackRecord) []types.FeedbackRecord {
	if user.IsAdmin() {
		return corpus
	}
	var out []types.FeedbackRecord
	for _, rec := range corpus {
		if rec.UserEmail == user.Email {
			out = append(out, rec)
		}
	}
	logging.SessionDebug("Filter: %d/%d records visible to %s", len(out), len(corpus), user.Email)
	return out
}

// Login validates and persists the user identity. An email containing
// "admin" gets the admin role, matching the demo identity rules.
func Login(kv KV, email, name string) (types.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return types.User{}, fmt.Errorf("invalid email %q", email)
	}

	role := types.RoleUser
	if strings.Contains(email, "admin") {
		role = types.RoleAdmin
	}
	user := types.User{Email: email, Role: role, Name: strings.TrimSpace(name)}

	data, err := json.Marshal(user)
	if err != nil {
		return types.User{}, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := kv.SaveKV(userKey, data); err != nil {
		return types.User{}, fmt.Errorf("failed to persist user: %w", err)
	}
	logging.Session("Logged in %s (role=%s)", user.Email, user.Role)
	return user, nil
}

// Current returns the persisted user, if any.
func Current(kv KV) (types.User, bool, error) {
	data, ok, err := kv.LoadKV(userKey)
	if err != nil {
		return types.User{}, false, err
	}
	if !ok {
		return types.User{}, false, nil
	}
	var user types.User
	if err := json.Unmarshal(data, &user); err != nil {
		return types.User{}, false, fmt.Errorf("failed to decode persisted user: %w", err)
	}
	return user, true, nil
}

// Logout clears the persisted user.
func Logout(kv KV) error {
	if err := kv.DeleteKV(userKey); err != nil {
		return err
	}
	logging.Session("Logged out")
	return nil
}
