package app

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

const (
	codeMin = 1000
	codeMax = 9999
)

// CodeGenerator draws 4-digit numeric room codes. Codes are short, so
// callers must check each draw against the live room set and redraw on
// collision rather than trusting probability.
type CodeGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewCodeGeneratorWithSeed is test-only for reproducible draws.
func NewCodeGeneratorWithSeed(seed int64) *CodeGenerator {
	return &CodeGenerator{rnd: rand.New(rand.NewSource(seed))}
}

// Next returns a code in [1000, 9999] as a fixed-width numeric string.
func (g *CodeGenerator) Next() string {
	g.mu.Lock()
	n := codeMin + g.rnd.Intn(codeMax-codeMin+1)
	g.mu.Unlock()
	return strconv.Itoa(n)
}
