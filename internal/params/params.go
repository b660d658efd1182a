// Package params provides the key/value stores the event engine reads flags
// from and signals through.
package params

import (
	"errors"
	"strconv"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("params: key not found")

// Store is a string key/value store. Implementations must be cheap enough to
// call from a control-loop tick.
type Store interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Remove(key string) error
}

// PutInt stores v under key in decimal form.
func PutInt(s Store, key string, v int) error {
	return s.Put(key, strconv.Itoa(v))
}

// GetInt reads an integer previously written with PutInt.
func GetInt(s Store, key string) (int, error) {
	raw, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// Nop discards writes and reports every key as missing.
type Nop struct{}

func (Nop) Get(string) (string, error) { return "", ErrNotFound }
func (Nop) Put(string, string) error   { return nil }
func (Nop) Remove(string) error        { return nil }
