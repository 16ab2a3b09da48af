package assembler

import (
	"fmt"

	"github.com/schism-vm/schism/pkg/vm"
)

// SourceInstruction is one parsed source line: a mnemonic and its raw
// argument tokens.
type SourceInstruction struct {
	Mnemonic string
	Args     []Token
	Line     int
}

// SourceProgram is a parsed assembly source file.
type SourceProgram struct {
	Type         vm.ModuleType
	Instructions []SourceInstruction
}

// Parser groups lexed tokens into instruction lines and applies
// module-type directives.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a parser over the given source text.
func NewParser(input string) *Parser {
	return &Parser{tokens: NewLexer(input).Tokenize()}
}

// Parse consumes the token stream into a SourceProgram. The module
// type defaults to fragment; a .vertex or .fragment directive before
// the first instruction overrides it.
func (p *Parser) Parse() (*SourceProgram, error) {
	program := &SourceProgram{Type: vm.ModuleFragment}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]

		switch tok.Type {
		case TokenEOF:
			return program, nil

		case TokenNewline:
			p.pos++

		case TokenDirective:
			if err := p.parseDirective(program); err != nil {
				return nil, err
			}

		case TokenWord:
			program.Instructions = append(program.Instructions, p.parseInstruction())

		default:
			return nil, fmt.Errorf("line %d: %w: unexpected %s %q",
				tok.Line, ErrInvalidArgument, tok.Type, tok.Value)
		}
	}

	return program, nil
}

func (p *Parser) parseDirective(program *SourceProgram) error {
	tok := p.tokens[p.pos]
	p.pos++

	if len(program.Instructions) > 0 {
		return fmt.Errorf("line %d: %w: directive .%s after first instruction",
			tok.Line, ErrInvalidArgument, tok.Value)
	}

	switch tok.Value {
	case "VERTEX":
		program.Type = vm.ModuleVertex
	case "FRAGMENT":
		program.Type = vm.ModuleFragment
	default:
		return fmt.Errorf("line %d: %w: unknown directive .%s",
			tok.Line, ErrInvalidArgument, tok.Value)
	}
	return nil
}

func (p *Parser) parseInstruction() SourceInstruction {
	inst := SourceInstruction{
		Mnemonic: p.tokens[p.pos].Value,
		Line:     p.tokens[p.pos].Line,
	}
	p.pos++

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if tok.Type == TokenNewline || tok.Type == TokenEOF {
			break
		}
		inst.Args = append(inst.Args, tok)
		p.pos++
	}

	return inst
}
