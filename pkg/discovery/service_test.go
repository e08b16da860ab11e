// ABOUTME: Tests for the service type registry
// ABOUTME: Wire strings, required keys and parsing
package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTypeWireStrings(t *testing.T) {
	assert.Equal(t, "_csvn._tcp.local.", ServiceTypeCSVN.Wire())
	assert.Equal(t, "_http._tcp.local.", ServiceTypeHTTP.Wire())
	assert.Equal(t, "_csvn._tcp.local.", ServiceTypeCSVN.String())
	assert.Equal(t, "ServiceType(0)", ServiceType(0).String())
}

func TestServiceTypeRequiredKeys(t *testing.T) {
	assert.Equal(t, []ServiceKey{CSVNContextPath, CSVNTeamForgePath}, ServiceTypeCSVN.RequiredKeys())
	assert.Equal(t, []ServiceKey{HTTPPath}, ServiceTypeHTTP.RequiredKeys())

	keys := ServiceTypeCSVN.RequiredKeys()
	keys[0] = HTTPPath
	assert.Equal(t, CSVNContextPath, ServiceTypeCSVN.RequiredKeys()[0], "registry must not be mutable through the returned slice")
}

func TestServiceKeys(t *testing.T) {
	assert.Equal(t, "path", CSVNContextPath.String())
	assert.Equal(t, "tfpath", CSVNTeamForgePath.String())
	assert.Equal(t, "path", HTTPPath.String())
	assert.Equal(t, "CONTEXT_PATH", CSVNContextPath.Name())

	// same wire name, different scope
	assert.NotEqual(t, CSVNContextPath, HTTPPath)

	k, ok := ServiceTypeCSVN.KeyByWire("TFPATH")
	assert.True(t, ok)
	assert.Equal(t, CSVNTeamForgePath, k)

	_, ok = ServiceTypeHTTP.KeyByWire("tfpath")
	assert.False(t, ok)
}

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		in   string
		want ServiceType
	}{
		{"csvn", ServiceTypeCSVN},
		{"HTTP", ServiceTypeHTTP},
		{"_csvn._tcp.local.", ServiceTypeCSVN},
		{"_http._tcp.local", ServiceTypeHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseServiceType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseServiceType("_ftp._tcp.local.")
	assert.Error(t, err)
}

func TestServiceTypes(t *testing.T) {
	types := ServiceTypes()
	assert.Len(t, types, 2)
	for _, st := range types {
		assert.True(t, st.Valid())
		assert.NotEmpty(t, st.RequiredKeys())
	}
	assert.False(t, ServiceType(99).Valid())
}
