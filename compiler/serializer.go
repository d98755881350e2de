package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The wire format is a flat stream of nonnegative decimal integer words,
// whitespace-separated. Each instruction serializes as its tag word
// followed by as many operand words as its arity requires. Signed
// operands (LoadConst's immediate, and jump/call targets which are always
// nonnegative in practice) are carried through the unsigned word channel
// by reinterpreting their bit pattern as a uint32, so every word on the
// wire is nonnegative even though LoadConst may carry a negative value.
//
// The stream begins with a single header word: the total instruction
// count, which lets the deserializer preallocate and detect truncation.

func wordFromInt32(v int32) int {
	return int(uint32(v))
}

func int32FromWord(w int) int32 {
	return int32(uint32(w))
}

// Encode flattens code into its wire-format word stream.
func Encode(code Code) []int {
	words := make([]int, 0, len(code)*2+1)
	words = append(words, len(code))
	for _, instr := range code {
		tag, err := TagOf(instr.Op)
		if err != nil {
			panic(err)
		}
		_, arity, _ := OpcodeForTag(tag)
		words = append(words, tag)
		if arity > 0 {
			words = append(words, wordFromInt32(instr.A))
		}
		if arity > 1 {
			words = append(words, wordFromInt32(instr.B))
		}
	}
	return words
}

// WriteTo serializes code as whitespace-separated decimal words to w.
func WriteTo(w io.Writer, code Code) error {
	words := Encode(code)
	strs := make([]string, len(words))
	for i, word := range words {
		strs[i] = strconv.Itoa(word)
	}
	_, err := fmt.Fprintln(w, strings.Join(strs, " "))
	return err
}

// ReadFrom parses a whitespace-separated decimal word stream from r and
// reconstructs the instruction list it encodes. Returns a
// SerializationError for any malformed or truncated input: a
// non-nonnegative-integer token, an unknown opcode tag, or a word count
// that runs out mid-instruction.
func ReadFrom(r io.Reader) (Code, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(bufio.ScanWords)

	words := []int{}
	for scanner.Scan() {
		tok := scanner.Text()
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return nil, SerializationError{Message: fmt.Sprintf("expected a nonnegative integer word, got %q", tok)}
		}
		words = append(words, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, SerializationError{Message: fmt.Sprintf("reading bytecode stream: %s", err.Error())}
	}
	return Decode(words)
}

// Decode reconstructs an instruction list from a flattened word stream.
func Decode(words []int) (Code, error) {
	if len(words) == 0 {
		return nil, SerializationError{Message: "empty bytecode stream: missing instruction count header"}
	}
	count := words[0]
	pos := 1
	code := make(Code, 0, count)
	for i := 0; i < count; i++ {
		if pos >= len(words) {
			return nil, SerializationError{Message: fmt.Sprintf("truncated stream: expected %d instructions, ran out at %d", count, i)}
		}
		tag := words[pos]
		pos++
		op, arity, err := OpcodeForTag(tag)
		if err != nil {
			return nil, err
		}
		instr := Instruction{Op: op}
		if arity > 0 {
			if pos >= len(words) {
				return nil, SerializationError{Message: fmt.Sprintf("truncated stream: instruction %d (%s) missing operand A", i, op.Name())}
			}
			instr.A = int32FromWord(words[pos])
			pos++
		}
		if arity > 1 {
			if pos >= len(words) {
				return nil, SerializationError{Message: fmt.Sprintf("truncated stream: instruction %d (%s) missing operand B", i, op.Name())}
			}
			instr.B = int32FromWord(words[pos])
			pos++
		}
		code = append(code, instr)
	}
	if pos != len(words) {
		return nil, SerializationError{Message: fmt.Sprintf("trailing garbage after %d declared instructions", count)}
	}
	return code, nil
}
