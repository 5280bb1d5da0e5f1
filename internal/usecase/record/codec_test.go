package record

import (
	"testing"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/entity"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	event, err := Decode([]byte(`{"user_id":"alice","x":1,"nested":{"a":[1,2]}}`))
	require.NoError(t, err)

	id, ok := event.UserID()
	assert.True(t, ok)
	assert.Equal(t, "alice", id)
	assert.Contains(t, event, "nested")
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `not-json`,
		"empty":            ``,
		"array":            `[1,2,3]`,
		"null":             `null`,
		"string":           `"alice"`,
		"missing user_id":  `{"x":1}`,
		"numeric user_id":  `{"user_id":42}`,
		"empty user_id":    `{"user_id":""}`,
		"null user_id":     `{"user_id":null}`,
		"trailing garbage": `{"user_id":"alice"} {"user_id":"bob"}`,
		"truncated":        `{"user_id":"ali`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrDecode)
		})
	}
}

func TestEncode_PreservesNumbers(t *testing.T) {
	event, err := Decode([]byte(`{"user_id":"alice","x":1,"big":12345678901234567890,"f":1.50}`))
	require.NoError(t, err)

	out, err := Encode(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"alice","x":1,"big":12345678901234567890,"f":1.50}`, string(out))
	assert.Contains(t, string(out), `12345678901234567890`)
}

func TestEncode_ReplacedUserID(t *testing.T) {
	event, err := Decode([]byte(`{"user_id":"alice","x":1}`))
	require.NoError(t, err)

	out, err := Encode(event.WithUserID("p"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"p","x":1}`, string(out))

	// input event is untouched
	id, _ := event.UserID()
	assert.Equal(t, "alice", id)
}

func TestRawEvent_UserIDAbsent(t *testing.T) {
	_, ok := entity.RawEvent{"x": 1}.UserID()
	assert.False(t, ok)
}
