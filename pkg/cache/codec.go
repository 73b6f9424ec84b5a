package cache

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrCorrupt is returned when a cache entry exists but cannot be decoded.
// Callers must not continue with partially trusted state.
var ErrCorrupt = errors.New("cache entry is corrupt")

// Every encoded value starts with magic followed by one format version byte.
// Bump FormatVersion whenever a cached type changes shape.
const (
	magic         = "TGC\x00"
	FormatVersion = byte(1)
	headerLen     = len(magic) + 1
)

// Encode serializes v into the versioned binary cache format.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(FormatVersion)
	if err := msgpack.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes data produced by Encode into v. Any header mismatch or
// decoding failure is reported as ErrCorrupt.
func Decode(data []byte, v any) error {
	if len(data) < headerLen || string(data[:len(magic)]) != magic {
		return fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	if version := data[len(magic)]; version != FormatVersion {
		return fmt.Errorf("%w: format version %d, expected %d", ErrCorrupt, version, FormatVersion)
	}
	if err := msgpack.Unmarshal(data[headerLen:], v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// PutValue encodes v and stores it under key.
func (s *Store) PutValue(key string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// GetValue loads the entry for key into v. It reports false when the entry
// does not exist.
func (s *Store) GetValue(key string, v any) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := Decode(data, v); err != nil {
		return false, fmt.Errorf("cache entry '%s': %w", key, err)
	}
	return true, nil
}
