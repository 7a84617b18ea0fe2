package service

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet holds the 64 URL-safe characters short codes are drawn
// from. Being a power of two, masking random bytes onto it introduces
// no modulo bias.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// DefaultCodeLength gives negligible collision probability at scale
// (64^10 possible codes).
const DefaultCodeLength = 10

// CodeGenerator produces random short-code candidates. It is stateless
// and safe for concurrent use.
type CodeGenerator struct {
	length int
}

// NewCodeGenerator returns a generator for codes of the given length.
func NewCodeGenerator(length int) (*CodeGenerator, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCodeLength, length)
	}
	return &CodeGenerator{length: length}, nil
}

// Generate returns one random candidate code.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("code generator: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[b&63]
	}
	return string(buf), nil
}
