package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out session ids of the form prefix-N, starting at 1, in
// the order Create asks for them.
type IDGenerator struct {
	prefix string
	issued atomic.Uint64
}

// NewIDGenerator defaults an empty prefix to "session".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.issued.Add(1), 10)
}

// NextFunc returns Next for injection into a service.
func (g *IDGenerator) NextFunc() func() string {
	return g.Next
}

// Issued reports how many ids have been handed out.
func (g *IDGenerator) Issued() int {
	return int(g.issued.Load())
}
