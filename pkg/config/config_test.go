package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plcalarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
target:
  address: "192.168.0.10:48898"
  net_id: "192.168.0.10.1.1"
  port: 110
source:
  net_id: "10.0.0.5.1.1"
  port: 33000
connection:
  retry_interval: 2s
  connect_timeout: 15s
  request_timeout: 5s
subscription:
  buffer_size: 8192
history:
  path: "/var/lib/plcalarm/history.db"
capture:
  path: "/var/log/plcalarm/capture.plog"
log:
  level: debug
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.0.10:48898", c.Target.Address)
	assert.Equal(t, "192.168.0.10.1.1", c.Target.NetID)
	assert.Equal(t, uint16(110), c.Target.Port)
	assert.Equal(t, "10.0.0.5.1.1", c.Source.NetID)
	assert.Equal(t, uint16(33000), c.Source.Port)
	assert.Equal(t, 2*time.Second, c.Connection.RetryInterval)
	assert.Equal(t, 15*time.Second, c.Connection.ConnectTimeout)
	assert.Equal(t, 5*time.Second, c.Connection.RequestTimeout)
	assert.Equal(t, uint32(8192), c.Subscription.BufferSize)
	assert.Equal(t, "/var/lib/plcalarm/history.db", c.History.Path)
	assert.Equal(t, "/var/log/plcalarm/capture.plog", c.Capture.Path)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
target:
  address: "192.168.0.10:48898"
  net_id: "192.168.0.10.1.1"
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(transport.DefaultTargetPort), c.Target.Port)
	assert.Equal(t, DefaultSourceNetID, c.Source.NetID)
	assert.Equal(t, uint16(DefaultSourcePort), c.Source.Port)
	assert.Equal(t, DefaultRetryInterval, c.Connection.RetryInterval)
	assert.Equal(t, DefaultConnectTimeout, c.Connection.ConnectTimeout)
	assert.Equal(t, DefaultRequestTimeout, c.Connection.RequestTimeout)
	assert.Equal(t, uint32(DefaultBufferSize), c.Subscription.BufferSize)
	assert.Equal(t, DefaultLogLevel, c.Log.Level)
	assert.Empty(t, c.History.Path, "history disabled by default")
	assert.Empty(t, c.Capture.Path, "capture disabled by default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "target: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.Target.Address = "192.168.0.10:48898"
		c.Target.NetID = "192.168.0.10.1.1"
		return c
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing address", func(t *testing.T) {
		c := base()
		c.Target.Address = ""
		assert.ErrorIs(t, c.Validate(), ErrMissingAddress)
	})

	t.Run("bad target net id", func(t *testing.T) {
		c := base()
		c.Target.NetID = "192.168.0.10"
		assert.Error(t, c.Validate())
	})

	t.Run("bad source net id", func(t *testing.T) {
		c := base()
		c.Source.NetID = "not.a.net.id"
		assert.Error(t, c.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		c := base()
		c.Log.Level = "verbose"
		assert.Error(t, c.Validate())
	})
}

func TestClientConfig(t *testing.T) {
	c := Default()
	c.Target.Address = "192.168.0.10:48898"
	c.Target.NetID = "192.168.0.10.1.1"
	c.Source.NetID = "10.0.0.5.1.1"
	c.Source.Port = 33000
	require.NoError(t, c.Validate())

	cc := c.ClientConfig()
	assert.Equal(t, "192.168.0.10:48898", cc.Address)
	assert.Equal(t, "192.168.0.10.1.1", cc.Target.String())
	assert.Equal(t, uint16(transport.DefaultTargetPort), cc.TargetPort)
	assert.Equal(t, "10.0.0.5.1.1", cc.Source.String())
	assert.Equal(t, uint16(33000), cc.SourcePort)
	assert.Equal(t, DefaultConnectTimeout, cc.ConnectTimeout)
	assert.Equal(t, DefaultRequestTimeout, cc.RequestTimeout)
}
