package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateToken(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		want      Token
	}{
		{
			name:      "Create ASSIGN token",
			tokenType: ASSIGN,
			want:      Token{TokenType: ASSIGN, Lexeme: "=", Line: 1, Column: 3},
		},
		{
			name:      "Create ARROW token",
			tokenType: ARROW,
			want:      Token{TokenType: ARROW, Lexeme: "->", Line: 2, Column: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateToken(tt.tokenType, tt.want.Line, tt.want.Column)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLiteralToken(t *testing.T) {
	got := CreateLiteralToken(INT, int64(42), "42", 1, 5)
	assert.Equal(t, TokenType(INT), got.TokenType)
	assert.Equal(t, "42", got.Lexeme)
	assert.Equal(t, int64(42), got.Literal)
}

func TestKeyWordsContainsSourceKeywords(t *testing.T) {
	for _, kw := range []string{"fn", "var", "val", "if", "else", "while", "return", "break", "continue", "true", "false", "i32"} {
		_, ok := KeyWords[kw]
		assert.Truef(t, ok, "expected KeyWords to contain %q", kw)
	}
}
