package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	code := Code{
		{Op: OpLoadConst, A: -7},
		{Op: OpLoadConst, A: 42},
		{Op: OpBinOpAdd},
		{Op: OpStoreGlobal, A: 0},
		{Op: OpCall, A: 5, B: 2},
		{Op: OpRet},
	}

	words := Encode(code)
	decoded, err := Decode(words)
	assert.NoError(t, err)
	assert.Equal(t, code, decoded)
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	code := Code{
		{Op: OpLoadConst, A: 3},
		{Op: OpLoadGlobal, A: 1},
		{Op: OpBinOpMul},
		{Op: OpPrintItem},
		{Op: OpPrintNewline},
	}

	var buf bytes.Buffer
	assert.NoError(t, WriteTo(&buf, code))

	decoded, err := ReadFrom(&buf)
	assert.NoError(t, err)
	assert.Equal(t, code, decoded)
}

func TestWriteToFormatIsWhitespaceSeparatedDecimalWords(t *testing.T) {
	code := Code{{Op: OpLoadConst, A: 5}, {Op: OpRet}}
	var buf bytes.Buffer
	assert.NoError(t, WriteTo(&buf, code))

	fields := strings.Fields(buf.String())
	// header (1) + LoadConst tag+operand (2) + Ret tag (1)
	assert.Len(t, fields, 4)
	assert.Equal(t, "2", fields[0])
	assert.Equal(t, "1", fields[1])
	assert.Equal(t, "5", fields[2])
	assert.Equal(t, "27", fields[3])
}

func TestDecodeEmptyStream(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)
	assert.IsType(t, SerializationError{}, err)
}

func TestDecodeTruncatedStream(t *testing.T) {
	// header claims 2 instructions but only one tag follows
	_, err := Decode([]int{2, 27})
	assert.Error(t, err)
	assert.IsType(t, SerializationError{}, err)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]int{1, 9999})
	assert.Error(t, err)
	assert.IsType(t, SerializationError{}, err)
}

func TestDecodeTrailingGarbage(t *testing.T) {
	_, err := Decode([]int{1, 27, 0})
	assert.Error(t, err)
	assert.IsType(t, SerializationError{}, err)
}

func TestReadFromRejectsNegativeWord(t *testing.T) {
	_, err := ReadFrom(strings.NewReader("1 -5"))
	assert.Error(t, err)
	assert.IsType(t, SerializationError{}, err)
}

func TestLoadConstNegativeOperandSurvivesWordReinterpretation(t *testing.T) {
	assert.Equal(t, -1, int(int32FromWord(wordFromInt32(-1))))
	assert.Equal(t, -123456, int(int32FromWord(wordFromInt32(-123456))))
}
