package attendance

import (
	"math/rand"
	"sync"
	"time"
)

// CodeLength is the length of a session code.
const CodeLength = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces short one-time session codes. Codes are enumerable
// and not meant to resist an attacker with unlimited attempts.
type CodeGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCodeGenerator returns a generator drawing from src, or from a
// time-seeded source when src is nil.
func NewCodeGenerator(src rand.Source) *CodeGenerator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &CodeGenerator{rnd: rand.New(src)}
}

// Generate returns CodeLength characters drawn uniformly from [A-Z0-9].
func (g *CodeGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}
