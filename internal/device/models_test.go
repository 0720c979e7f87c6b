package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	canonicalToken = "fe66489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746"
	providerToken  = "FE66489F304DC75B8D6E8200DFF8A456E8DAEACEC428B427E5B6F17331C82746"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", canonicalToken, canonicalToken},
		{"uppercase with spaces", "FE66489F 304DC75B 8D6E8200 DFF8A456 E8DAEACE C428B427 E5B6F173 31C82746", canonicalToken},
		{"provider form", providerToken, canonicalToken},
		{"wrapped canonical", "<" + canonicalToken + ">", canonicalToken},
		{"wrapped provider form", "<" + providerToken + ">", canonicalToken},
		{"surrounding whitespace", "  " + canonicalToken + "  ", canonicalToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToken(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeToken_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"nope",
		"fe66489f 304dc75b",
		"zz66489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746",
		"<>",
	} {
		_, err := NormalizeToken(in)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", in)
	}
}

func TestProviderTokenRoundTrip(t *testing.T) {
	d := &Device{}
	require.NoError(t, d.SetToken("<"+canonicalToken+">"))

	assert.Equal(t, canonicalToken, d.Token)
	assert.Equal(t, providerToken, d.ProviderToken())
	assert.Equal(t, canonicalToken, CanonicalFromProviderToken(d.ProviderToken()))
	assert.Equal(t, "2746", d.TokenLast4())
}

func TestActivate_GuardOnResponseCode(t *testing.T) {
	for _, code := range []int{200, 201} {
		d := &Device{State: StateCreated, ResponseCode: code}
		require.NoError(t, d.Activate())
		assert.Equal(t, StateActivated, d.State)
		assert.NotNil(t, d.LastRegisteredAt)
	}

	d := &Device{State: StateCreated, ResponseCode: 400}
	err := d.Activate()
	require.Error(t, err)
	assert.Equal(t, StateCreated, d.State)
}

func TestDeactivate_StampsLastInactiveAt(t *testing.T) {
	d := &Device{State: StateActivated}
	require.NoError(t, d.Deactivate())
	assert.Equal(t, StateInactive, d.State)
	assert.True(t, d.Inactive())
	assert.NotNil(t, d.LastInactiveAt)
}
