package jsonid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSafeRange(t *testing.T) {
	out, err := json.Marshal(ID(42))
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))

	out, err = json.Marshal(ID(MaxSafeInteger))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740991", string(out))
}

func TestMarshalWideRange(t *testing.T) {
	out, err := json.Marshal(ID(MaxSafeInteger + 1))
	require.NoError(t, err)
	assert.Equal(t, `"9007199254740992"`, string(out))

	out, err = json.Marshal(ID(-MaxSafeInteger - 1))
	require.NoError(t, err)
	assert.Equal(t, `"-9007199254740992"`, string(out))
}

func TestUnmarshalBothForms(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte("42"), &id))
	assert.Equal(t, ID(42), id)

	require.NoError(t, json.Unmarshal([]byte(`"9007199254740992"`), &id))
	assert.Equal(t, ID(MaxSafeInteger+1), id)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &id))
}

func TestRoundTripAtBorder(t *testing.T) {
	for _, v := range []int64{MaxSafeInteger - 1, MaxSafeInteger, MaxSafeInteger + 1} {
		out, err := json.Marshal(ID(v))
		require.NoError(t, err)
		var back ID
		require.NoError(t, json.Unmarshal(out, &back))
		assert.Equal(t, ID(v), back)
	}
}

func TestParse(t *testing.T) {
	id, err := Parse("17")
	require.NoError(t, err)
	assert.Equal(t, ID(17), id)

	id, err = Parse("-3")
	require.NoError(t, err)
	assert.Equal(t, ID(-3), id)

	_, err = Parse("abc")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("+17")
	assert.Error(t, err)
}
