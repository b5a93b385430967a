package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
)

func TestDecodeClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u1",
		"email":  "ada@example.com",
		"exp":    exp.Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	claims, err := DecodeClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.ExpiresAt.Equal(exp))

	assert.False(t, claims.Expired(exp.Add(-time.Hour), 30*time.Second))
	assert.True(t, claims.Expired(exp.Add(-10*time.Second), 30*time.Second))
	assert.True(t, claims.Expired(exp.Add(time.Minute), 0))

	_, err = DecodeClaims("tok-u1-2")
	assert.ErrorIs(t, err, ErrOpaqueToken)

	noExp := &SessionClaims{}
	assert.False(t, noExp.Expired(time.Now(), 0))
}

func TestEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"success":false,"message":"nope","error":"Post not found","Data":{"_id":"u1"},"data":null}`))
	require.NoError(t, err)
	assert.False(t, env.Succeeded())
	assert.Equal(t, "Post not found", env.ErrorMessage())
	assert.False(t, env.Has("data"))

	var user struct {
		ID string `json:"_id"`
	}
	found, err := env.Decode(&user, "data", "Data")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "u1", user.ID)

	found, err = env.Decode(&user, "user")
	require.NoError(t, err)
	assert.False(t, found)

	bare, err := DecodeEnvelope([]byte(` [{"_id":"r1"}] `))
	require.NoError(t, err)
	assert.True(t, bare.Succeeded())
	var list []map[string]string
	found, err = bare.Decode(&list, "replies", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, list, 1)

	empty, err := DecodeEnvelope(nil)
	require.NoError(t, err)
	assert.True(t, empty.Succeeded())

	_, err = DecodeEnvelope([]byte(`{broken`))
	assert.Error(t, err)
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Caption string   `json:"caption" validate:"notblank,max=5"`
		Tags    []string `json:"tags" validate:"min=1"`
	}

	assert.NoError(t, ValidateStruct(&input{Caption: "hi", Tags: []string{"a"}}))

	err := ValidateStruct(&input{Caption: "  ", Tags: nil})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, "caption is required, tags must have at least 1 item(s)", apperror.UserMessage(err))

	err = ValidateStruct(&input{Caption: "too long", Tags: []string{"a"}})
	assert.Equal(t, "caption must be at most 5 characters", apperror.UserMessage(err))
}
