package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// parserPool is a bounded checkout-return channel of tree-sitter parsers.
// Parsers must not cross thread boundaries while in use, so each worker
// checks one out, parses, and returns it.
type parserPool struct {
	ch chan *sitter.Parser
}

func newParserPool(size int) *parserPool {
	if size <= 0 {
		size = 4
	}
	p := &parserPool{ch: make(chan *sitter.Parser, size)}
	for i := 0; i < size; i++ {
		p.ch <- sitter.NewParser()
	}
	return p
}

// checkout blocks until a parser is free.
func (p *parserPool) checkout() *sitter.Parser {
	return <-p.ch
}

// giveBack returns a parser to the pool.
func (p *parserPool) giveBack(parser *sitter.Parser) {
	p.ch <- parser
}
