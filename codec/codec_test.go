package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_Date(t *testing.T) {
	d := Date(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	encoded, err := Encode(d)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 3, 15}, encoded)

	decoded, err := Decode(encoded, KindDate)
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestRoundTrip_DateTime(t *testing.T) {
	dt := DateTime(time.Date(2024, 3, 15, 10, 30, 45, 123000, time.UTC))
	encoded, err := Encode(dt)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 3, 15, 10, 30, 45, 123}, encoded)

	decoded, err := Decode(encoded, KindDateTime)
	require.NoError(t, err)
	assert.Equal(t, dt, decoded)
}

func TestRoundTrip_Time(t *testing.T) {
	tm := Time(time.Date(0, 1, 1, 14, 5, 9, 500000, time.UTC))
	encoded, err := Encode(tm)
	require.NoError(t, err)
	assert.Equal(t, []int{14, 5, 9, 500}, encoded)

	decoded, err := Decode(encoded, KindTime)
	require.NoError(t, err)
	assert.Equal(t, tm, decoded)
}

func TestRoundTrip_Binary(t *testing.T) {
	b := Binary([]byte{0x00, 0x01, 0xFF, 0xFE})
	encoded, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, "AAH//g==", encoded)

	decoded, err := Decode(encoded, KindBinary)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

func TestRoundTrip_Decimal(t *testing.T) {
	dec := Decimal("123.456000")
	encoded, err := Encode(dec)
	require.NoError(t, err)
	assert.Equal(t, "123.456000", encoded)

	decoded, err := Decode(encoded, KindDecimal)
	require.NoError(t, err)
	assert.Equal(t, dec, decoded)
}

func TestPassThrough_OtherScalars(t *testing.T) {
	for _, v := range []interface{}{"hello", 42, true, 3.14} {
		encoded, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, v, encoded)

		decoded, err := Decode(encoded, KindOther)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}

func TestNilRoundTrip(t *testing.T) {
	encoded, err := Encode(nil)
	require.NoError(t, err)
	assert.Nil(t, encoded)

	for _, kind := range []Kind{KindDate, KindDateTime, KindTime, KindBinary, KindDecimal, KindOther} {
		decoded, err := Decode(nil, kind)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	}
}

func TestDecode_JSONNumberShape(t *testing.T) {
	// JSON-decoded arrays of numbers arrive as []interface{} of float64.
	jsonShaped := []interface{}{float64(2024), float64(3), float64(15)}
	decoded, err := Decode(jsonShaped, KindDate)
	require.NoError(t, err)
	assert.Equal(t, Date(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), decoded)
}

func TestDecode_WrongShapeErrors(t *testing.T) {
	_, err := Decode([]interface{}{float64(1), float64(2)}, KindDate)
	assert.Error(t, err)

	_, err = Decode(42, KindBinary)
	assert.Error(t, err)

	_, err = Decode(42, KindDecimal)
	assert.Error(t, err)
}
