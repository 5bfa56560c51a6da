// Package secret holds credential material that must be wiped when a login
// attempt ends.
//
// The bytes live on the Go heap, so the collector may have copied them
// before Zero runs; zeroing is best effort. String and the fmt verbs always
// print [REDACTED].
package secret

import (
	"fmt"
	"sync"
)

// String is a zeroable secret. The zero value is an empty, already-wiped secret.
type String struct {
	mu     sync.Mutex
	data   []byte
	zeroed bool
}

// FromBytes copies b into a new secret and zeroes b in place.
func FromBytes(b []byte) *String {
	s := &String{data: make([]byte, len(b))}
	copy(s.data, b)
	for i := range b {
		b[i] = 0
	}
	return s
}

// FromString copies s into a new secret. The caller's string cannot be wiped.
func FromString(s string) *String {
	return &String{data: []byte(s)}
}

// Reveal returns the plaintext. It returns "" once Zero has been called.
func (s *String) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}

// Len returns the number of secret bytes still held.
func (s *String) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Zero overwrites and drops the secret. It is idempotent.
func (s *String) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
	s.zeroed = true
}

// IsZeroed reports whether Zero has been called.
func (s *String) IsZeroed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

func (s *String) String() string   { return "[REDACTED]" }
func (s *String) GoString() string { return "[REDACTED]" }

// Format implements fmt.Formatter so every verb redacts.
func (s *String) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

// Personal.AI order the ending
