package assembler

import (
	"testing"
)

func TestLexer_InstructionLine(t *testing.T) {
	tokens := NewLexer("set_f32 %fb0 1.0\n").Tokenize()

	want := []Token{
		{Type: TokenWord, Value: "SET_F32", Line: 1},
		{Type: TokenRegister, Value: "FB0", Line: 1},
		{Type: TokenWord, Value: "1.0", Line: 1},
		{Type: TokenNewline, Value: "\n", Line: 1},
		{Type: TokenEOF, Value: "", Line: 2},
	}

	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok != want[i] {
			t.Errorf("token %d: expected %+v, got %+v", i, want[i], tok)
		}
	}
}

func TestLexer_CommentsAndBlankLines(t *testing.T) {
	source := "; a comment line\n\nEXIT ; trailing comment\n"
	tokens := NewLexer(source).Tokenize()

	var words []string
	for _, tok := range tokens {
		if tok.Type == TokenWord {
			words = append(words, tok.Value)
		}
	}
	if len(words) != 1 || words[0] != "EXIT" {
		t.Errorf("expected only EXIT to survive, got %v", words)
	}
}

func TestLexer_Directive(t *testing.T) {
	tokens := NewLexer(".vertex\nEXIT\n").Tokenize()

	if tokens[0].Type != TokenDirective || tokens[0].Value != "VERTEX" {
		t.Errorf("expected VERTEX directive, got %+v", tokens[0])
	}
}

func TestLexer_CRLF(t *testing.T) {
	tokens := NewLexer("EXIT\r\nEXIT\r\n").Tokenize()

	words := 0
	for _, tok := range tokens {
		if tok.Type == TokenWord {
			words++
			if tok.Value != "EXIT" {
				t.Errorf("expected EXIT, got %q", tok.Value)
			}
		}
	}
	if words != 2 {
		t.Errorf("expected 2 instructions, got %d", words)
	}
}

func TestLexer_LineNumbers(t *testing.T) {
	tokens := NewLexer("EXIT\n\nMOV %S0 %S1\n").Tokenize()

	for _, tok := range tokens {
		if tok.Type == TokenWord && tok.Value == "MOV" && tok.Line != 3 {
			t.Errorf("expected MOV on line 3, got %d", tok.Line)
		}
	}
}
