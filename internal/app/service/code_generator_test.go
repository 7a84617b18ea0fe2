package service

import (
	"errors"
	"strings"
	"testing"
)

func TestNewCodeGeneratorRejectsBadLength(t *testing.T) {
	for _, length := range []int{0, -1} {
		if _, err := NewCodeGenerator(length); !errors.Is(err, ErrInvalidCodeLength) {
			t.Errorf("length %d: expected ErrInvalidCodeLength, got %v", length, err)
		}
	}
}

func TestGenerateLengthAndAlphabet(t *testing.T) {
	gen, err := NewCodeGenerator(DefaultCodeLength)
	if err != nil {
		t.Fatalf("NewCodeGenerator: %v", err)
	}

	for i := 0; i < 100; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != DefaultCodeLength {
			t.Fatalf("expected %d characters, got %q", DefaultCodeLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestGenerateProducesDistinctCodes(t *testing.T) {
	gen, err := NewCodeGenerator(DefaultCodeLength)
	if err != nil {
		t.Fatalf("NewCodeGenerator: %v", err)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if _, ok := seen[code]; ok {
			t.Fatalf("duplicate code %q in 50 draws", code)
		}
		seen[code] = struct{}{}
	}
}
