package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteDirection_JSON(t *testing.T) {
	cases := []struct {
		dir  VoteDirection
		want string
	}{
		{VoteUp, `"up"`},
		{VoteDown, `"down"`},
		{VoteNone, `"none"`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.dir)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))

		var got VoteDirection
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, tc.dir, got)
	}

	b, err := json.Marshal(map[string]any{"myVote": VoteDown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"myVote":"down"}`, string(b))
}

func TestVoteDirection_UnmarshalNumeric(t *testing.T) {
	var d VoteDirection
	require.NoError(t, json.Unmarshal([]byte(`-1`), &d))
	assert.Equal(t, VoteDown, d)

	assert.Error(t, json.Unmarshal([]byte(`2`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"sideways"`), &d))
}
