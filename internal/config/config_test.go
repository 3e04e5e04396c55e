package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseACLAllFlags(t *testing.T) {
	flags := ParseACL("dashboard registry badges management streaming netdata.conf")
	assert.True(t, flags.Allows(ACLDashboard))
	assert.True(t, flags.Allows(ACLRegistry))
	assert.True(t, flags.Allows(ACLBadges))
	assert.True(t, flags.Allows(ACLManagement))
	assert.True(t, flags.Allows(ACLStreaming))
	assert.True(t, flags.Allows(ACLNetdataConf))
}

func TestParseACLEmptyIsMaximallyRestrictive(t *testing.T) {
	flags := ParseACL("")
	assert.False(t, flags.Allows(ACLDashboard))
	assert.Equal(t, ACLFlag(0), flags)
}

func TestParseACLUnknownTokenIgnored(t *testing.T) {
	flags := ParseACL("dashboard bogus")
	assert.True(t, flags.Allows(ACLDashboard))
}

func TestLoadAppliesDefaults(t *testing.T) {
	raw := []byte(`{"listeners":[{"address":"0.0.0.0","acl":"dashboard"}]}`)
	cfg, err := Load(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Listeners, 1)
	assert.Equal(t, 19999, cfg.Listeners[0].Port)
	assert.Equal(t, "tcp", cfg.Listeners[0].Network)
	assert.True(t, cfg.Listeners[0].ACL.Allows(ACLDashboard))
	assert.Equal(t, 300, cfg.Retention.IntervalSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMissingListeners(t *testing.T) {
	_, err := Load([]byte(`{}`))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := Load([]byte(`{not json`))
	assert.Error(t, err)
}
