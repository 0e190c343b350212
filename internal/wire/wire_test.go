package wire

import (
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFormat(t *testing.T) {
	s, err := NewSerializer(DefaultCapacity, DefaultPrecision)
	require.NoError(t, err)

	payload, truncated := s.Encode(Message{
		Frame:    12,
		BodyID:   3,
		Joint:    26,
		Position: r3.Vector{X: -10.5, Y: 20, Z: 1999.25},
	})
	assert.False(t, truncated)
	assert.Equal(t,
		"Frame: 12, Body ID[3], Joint[26]: Position[mm] ( -10.500000, 20.000000, 1999.250000 );\n",
		string(payload))
}

func TestEncodePrecision(t *testing.T) {
	s, err := NewSerializer(DefaultCapacity, 2)
	require.NoError(t, err)

	payload, _ := s.Encode(Message{Frame: 1, BodyID: 1, Position: r3.Vector{X: 1.005, Y: 2, Z: 3.14159}})
	assert.Contains(t, string(payload), "( 1.00, 2.00, 3.14 )")
}

func TestEncodeTruncatesToCapacity(t *testing.T) {
	full := string(Append(nil, Message{Frame: 1, BodyID: 1, Joint: 31, Position: r3.Vector{X: 1, Y: 2, Z: 3}}, DefaultPrecision))

	tests := []struct {
		name      string
		capacity  int
		truncated bool
	}{
		{"fits with room to spare", len(full) + 10, false},
		{"fits exactly", len(full), false},
		{"one byte short", len(full) - 1, true},
		{"minimum capacity", MinCapacity, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSerializer(tt.capacity, DefaultPrecision)
			require.NoError(t, err)

			payload, truncated := s.Encode(Message{Frame: 1, BodyID: 1, Joint: 31, Position: r3.Vector{X: 1, Y: 2, Z: 3}})
			assert.Equal(t, tt.truncated, truncated)
			if tt.truncated {
				assert.Len(t, payload, tt.capacity)
				assert.True(t, strings.HasPrefix(full, string(payload)))
			} else {
				assert.Equal(t, full, string(payload))
			}
		})
	}
}

func TestEncodeReusesBuffer(t *testing.T) {
	s, err := NewSerializer(64, 0)
	require.NoError(t, err)

	long, truncated := s.Encode(Message{Frame: 123456789, BodyID: 42, Joint: 10, Position: r3.Vector{X: 123456, Y: 654321, Z: 999999}})
	require.True(t, truncated)
	assert.Len(t, long, 64)
	assert.Equal(t, 64, s.Capacity())

	short, truncated := s.Encode(Message{Frame: 1, BodyID: 1, Joint: 0})
	assert.False(t, truncated)
	assert.Equal(t, "Frame: 1, Body ID[1], Joint[0]: Position[mm] ( 0, 0, 0 );\n", string(short))
}

func TestNewSerializerValidates(t *testing.T) {
	_, err := NewSerializer(MinCapacity-1, DefaultPrecision)
	assert.Error(t, err)
	_, err = NewSerializer(MaxCapacity+1, DefaultPrecision)
	assert.Error(t, err)
	_, err = NewSerializer(DefaultCapacity, -1)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	want := Message{Frame: 77, BodyID: 2, Joint: 5, Position: r3.Vector{X: 10.25, Y: -20.5, Z: 3030}}
	got, err := Decode(Append(nil, want, 3))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	s, err := NewSerializer(40, DefaultPrecision)
	require.NoError(t, err)
	truncated, cut := s.Encode(want)
	require.True(t, cut)
	_, err = Decode(truncated)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte("hello"))
	assert.ErrorIs(t, err, ErrMalformed)

	full := Append(nil, want, 3)
	for _, cut := range []int{1, 2, 3} {
		_, err = Decode(full[:len(full)-cut])
		assert.ErrorIs(t, err, ErrMalformed, "cut %d bytes", cut)
	}
}
