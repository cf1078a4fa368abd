package tables

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength         = 8
	DefaultCodeAttempt = 5
)

// CodeLookup reports whether a reservation code is already stored.
type CodeLookup interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator issues reservation codes that are not yet in use.
type CodeGenerator struct {
	lookup      CodeLookup
	maxAttempts int
	source      io.Reader
}

func NewCodeGenerator(lookup CodeLookup, maxAttempts int) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempt
	}
	return &CodeGenerator{lookup: lookup, maxAttempts: maxAttempts, source: rand.Reader}
}

func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := randomCode(g.source)
		if err != nil {
			return "", fmt.Errorf("cannot generate reservation code: %w", err)
		}

		exists, err := g.lookup.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("cannot check reservation code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// randomCode draws CodeLength symbols from codeAlphabet. Bytes past the
// largest multiple of the alphabet size are discarded to keep the draw
// uniform.
func randomCode(r io.Reader) (string, error) {
	limit := byte(256 - 256%len(codeAlphabet))
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)

	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
