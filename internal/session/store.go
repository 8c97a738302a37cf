// Package session is the persistent key-value store the cart and auth managers
// keep their state in. It plays the role of browser local storage: string
// slots, last writer wins, no transactions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known slots.
const (
	SlotCart    = "cart"
	SlotUser    = "user"
	SlotSession = "session"
)

// ErrNotFound is returned by Get for an empty slot.
var ErrNotFound = errors.New("session: slot not found")

// Store is a synchronous string key-value store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// GetJSON reads key and decodes it into v. It returns ErrNotFound for an empty
// slot and a decode error for malformed content.
func GetJSON(s Store, key string, v any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode slot %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and writes it to key.
func SetJSON(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slot %q: %w", key, err)
	}
	return s.Set(key, string(raw))
}
