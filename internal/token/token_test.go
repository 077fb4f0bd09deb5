package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialfeed/socialfeed-auth/internal/domain"
)

func testCodec() *Codec {
	return NewCodec("access-secret", 15*time.Minute, "refresh-secret", 7*24*time.Hour)
}

var testPayload = domain.TokenPayload{ID: "u-1", Email: "a@x.com", Username: "alice"}

func TestSignVerifyRoundtrip(t *testing.T) {
	codec := testCodec()

	accessToken, err := codec.SignAccess(testPayload)
	require.NoError(t, err)

	got, err := codec.VerifyAccess(accessToken)
	require.NoError(t, err)
	require.Equal(t, testPayload, got)

	refreshToken, err := codec.SignRefresh(testPayload)
	require.NoError(t, err)

	got, err = codec.VerifyRefresh(refreshToken)
	require.NoError(t, err)
	require.Equal(t, testPayload, got)
}

func TestSecretsAreDistinct(t *testing.T) {
	codec := testCodec()

	refreshToken, err := codec.SignRefresh(testPayload)
	require.NoError(t, err)

	// A refresh token must not pass as an access token.
	_, err = codec.VerifyAccess(refreshToken)
	require.ErrorIs(t, err, ErrTokenMalformed)

	accessToken, err := codec.SignAccess(testPayload)
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(accessToken)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyExpired(t *testing.T) {
	codec := NewCodec("access-secret", -time.Second, "refresh-secret", -time.Second)

	accessToken, err := codec.SignAccess(testPayload)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(accessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyMalformed(t *testing.T) {
	codec := testCodec()

	for _, tokenString := range []string{"", "garbage", "a.b.c"} {
		_, err := codec.VerifyAccess(tokenString)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tokenString)
	}
}

func TestTokensAreUnique(t *testing.T) {
	codec := testCodec()

	first, err := codec.SignAccess(testPayload)
	require.NoError(t, err)
	second, err := codec.SignAccess(testPayload)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestRemainingLifetime(t *testing.T) {
	codec := testCodec()

	accessToken, err := codec.SignAccess(testPayload)
	require.NoError(t, err)

	remaining, err := RemainingLifetime(accessToken)
	require.NoError(t, err)
	assert.Greater(t, remaining, 14*time.Minute)
	assert.LessOrEqual(t, remaining, 15*time.Minute)

	expiredCodec := NewCodec("access-secret", -time.Hour, "refresh-secret", time.Hour)
	expired, err := expiredCodec.SignAccess(testPayload)
	require.NoError(t, err)

	remaining, err = RemainingLifetime(expired)
	require.NoError(t, err)
	assert.Negative(t, remaining)

	_, err = RemainingLifetime("garbage")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{name: "case insensitive scheme", header: "bearer abc", want: "abc", ok: true},
		{name: "empty header", header: "", ok: false},
		{name: "no scheme", header: "abc.def.ghi", ok: false},
		{name: "wrong scheme", header: "Basic abc", ok: false},
		{name: "scheme only", header: "Bearer ", ok: false},
		{name: "scheme no space", header: "Bearer", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBearer(tt.header)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
