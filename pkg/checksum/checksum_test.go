package checksum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		length   int
	}{
		{name: "empty alphabet", alphabet: "", length: 10},
		{name: "negative length", alphabet: "A", length: -10},
		{name: "zero length", alphabet: "A", length: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.alphabet, tt.length)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestChecksum_Create(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		length   int
		input    []byte
		want     string
	}{
		{name: "single char", alphabet: "A", length: 10, input: []byte{4}, want: "AAAAAAAAAA"},
		{name: "two chars length one", alphabet: "AB", length: 1, input: []byte{4, 10, 34, 3, 24}, want: "B"},
		{name: "two chars length two", alphabet: "AB", length: 2, input: []byte{4, 10, 34, 3, 24}, want: "AB"},
		{name: "single char length one", alphabet: "A", length: 1, input: []byte{4, 10, 34, 3, 24}, want: "A"},
		{name: "single char length two", alphabet: "A", length: 2, input: []byte{4, 10, 34, 3, 24}, want: "AA"},
		{name: "equal length", alphabet: "ABC", length: 3, input: []byte{0, 1, 2}, want: "ABC"},
		{name: "shorter input", alphabet: "ABC", length: 6, input: []byte{0, 1, 2}, want: "ABCABC"},
		{name: "longer input", alphabet: "ABC", length: 2, input: []byte{1, 1, 1}, want: "AB"},
		{name: "duplicate alphabet chars", alphabet: "AABBCC", length: 3, input: []byte{0, 1, 2}, want: "ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.alphabet, tt.length)
			require.NoError(t, err)

			got, err := c.Create(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecksum_Create_Nil(t *testing.T) {
	c := MustNewDefault(4)
	_, err := c.Create(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestChecksum_Create_LengthAndAlphabet(t *testing.T) {
	inputs := [][]byte{
		{},
		{0},
		{255, 254, 253},
		[]byte("SNABC-0000-0000-0000"),
		[]byte(strings.Repeat("license", 100)),
	}
	for _, length := range []int{1, 4, 8, 33} {
		c := MustNewDefault(length)
		for _, in := range inputs {
			got, err := c.Create(in)
			require.NoError(t, err)
			assert.Len(t, got, length)
			for _, r := range got {
				assert.Contains(t, Alphabet, string(r))
			}

			again, err := c.Create(in)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		}
	}
}
