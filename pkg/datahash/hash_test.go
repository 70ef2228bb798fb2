package datahash_test

import (
	"testing"

	"github.com/ethanbaker/clubsync/pkg/datahash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKeyOrderIndependence(t *testing.T) {
	assert := assert.New(t)

	a, err := datahash.HashRaw([]byte(`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`))
	require.NoError(t, err)

	b, err := datahash.HashRaw([]byte(`{"email":"ada@example.com","first_name":"Ada","last_name":"Lovelace"}`))
	require.NoError(t, err)

	assert.Equal(a, b)
}

func TestHashNestedKeyOrderIndependence(t *testing.T) {
	assert := assert.New(t)

	a, err := datahash.HashRaw([]byte(`{"member":{"name":"Ada","tier":"gold"},"tags":["a","b"]}`))
	require.NoError(t, err)

	b, err := datahash.HashRaw([]byte(`{"tags":["a","b"],"member":{"tier":"gold","name":"Ada"}}`))
	require.NoError(t, err)

	assert.Equal(a, b)
}

func TestHashDetectsValueChange(t *testing.T) {
	assert := assert.New(t)

	a, err := datahash.HashRaw([]byte(`{"email":"ada@example.com","tier":"gold"}`))
	require.NoError(t, err)

	b, err := datahash.HashRaw([]byte(`{"email":"ada@example.com","tier":"silver"}`))
	require.NoError(t, err)

	assert.NotEqual(a, b)
}

func TestHashArrayOrderIsSignificant(t *testing.T) {
	assert := assert.New(t)

	a, err := datahash.HashRaw([]byte(`{"tags":["gold","member"]}`))
	require.NoError(t, err)

	b, err := datahash.HashRaw([]byte(`{"tags":["member","gold"]}`))
	require.NoError(t, err)

	assert.NotEqual(a, b)
}

func TestHashStructsAndMapsAgree(t *testing.T) {
	assert := assert.New(t)

	type record struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
	}

	fromStruct, err := datahash.Hash(record{FirstName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	fromMap, err := datahash.Hash(map[string]any{
		"email":      "ada@example.com",
		"first_name": "Ada",
	})
	require.NoError(t, err)

	assert.Equal(fromStruct, fromMap)
}

func TestHashRawInvalidJSON(t *testing.T) {
	_, err := datahash.HashRaw([]byte(`{not json`))
	assert.Error(t, err)
}
