package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Subject string             `json:"subject"`
	Total   float64            `json:"total"`
	Split   map[string]float64 `json:"split"`
}

func TestContentHashIsStable(t *testing.T) {
	a := sample{Subject: "user-1", Total: 12.5, Split: map[string]float64{"b": 2, "a": 10.5}}
	b := sample{Subject: "user-1", Total: 12.5, Split: map[string]float64{"a": 10.5, "b": 2}}

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestVerifyContentHashDetectsTampering(t *testing.T) {
	v := sample{Subject: "user-1", Total: 12.5}
	h, err := ContentHash(v)
	require.NoError(t, err)

	ok, err := VerifyContentHash(v, h)
	require.NoError(t, err)
	assert.True(t, ok)

	v.Total = 12.6
	ok, err = VerifyContentHash(v, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContentHashRejectsUnencodable(t *testing.T) {
	_, err := ContentHash(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
