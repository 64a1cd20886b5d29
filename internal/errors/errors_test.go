package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrs "github.com/jdholdren/spotifeed/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := sferrs.E(
		"show_uri is invalid",
		sferrs.Detail{Field: "show_uri", Error: "must be 22 characters"},
		http.StatusNotFound,
	)
	want := &sferrs.Error{
		Err: errors.New("show_uri is invalid"),
		Details: []sferrs.Detail{
			{Field: "show_uri", Error: "must be 22 characters"},
		},
		Status: http.StatusNotFound,
	}

	assert.Equal(t, want, got)
}

func TestEDefaultsToInternal(t *testing.T) {
	got := sferrs.E("boom")
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("upstream down")
	err := fmt.Errorf("resolving: %w", sferrs.E(sentinel, http.StatusBadGateway))

	assert.ErrorIs(t, err, sentinel)

	var sErr *sferrs.Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusBadGateway, sErr.Status)
}

func TestMarshalJSON(t *testing.T) {
	byts, err := json.Marshal(sferrs.E("not found", http.StatusNotFound))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "not found", "status": 404}`, string(byts))

	var back sferrs.Error
	require.NoError(t, json.Unmarshal(byts, &back))
	assert.Equal(t, http.StatusNotFound, back.Status)
	assert.EqualError(t, back.Err, "not found")
}
