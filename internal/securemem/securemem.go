package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// String holds a secret in a locked, guarded buffer. The zero value and a
// nil *String both behave as the empty secret.
type String struct {
	buf       *memguard.LockedBuffer
	destroyed bool
}

// NewString moves plaintext into protected memory.
func NewString(plaintext string) *String {
	return NewStringFromBytes([]byte(plaintext))
}

// NewStringFromBytes moves data into protected memory. memguard wipes the
// input slice.
func NewStringFromBytes(data []byte) *String {
	if len(data) == 0 {
		return &String{}
	}
	return &String{buf: memguard.NewBufferFromBytes(data)}
}

func (s *String) live() bool {
	return s != nil && !s.destroyed && s.buf != nil
}

// IsEmpty reports whether the secret is empty or destroyed.
func (s *String) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the secret's length in bytes.
func (s *String) Len() int {
	if !s.live() {
		return 0
	}
	return s.buf.Size()
}

// Equal compares the secret with other in constant time.
func (s *String) Equal(other string) bool {
	if !s.live() {
		return other == ""
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// WithBytes calls fn with a plaintext copy that is wiped when fn returns.
// fn must not retain the slice.
func (s *String) WithBytes(fn func([]byte)) {
	var plain []byte
	if s.live() {
		plain = make([]byte, s.buf.Size())
		copy(plain, s.buf.Bytes())
		defer memguard.WipeBytes(plain)
	}
	fn(plain)
}

// WithString is WithBytes for APIs that take the secret as a string, such
// as pkcs12.ToPEM. The string itself cannot be wiped.
func (s *String) WithString(fn func(string)) {
	s.WithBytes(func(b []byte) {
		fn(string(b))
	})
}

// Destroy wipes the secret. Further calls see an empty secret.
func (s *String) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
	s.destroyed = true
}
