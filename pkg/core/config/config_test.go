/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
)

func newTestConfig() *Config {
	return &Config{
		UUID:         "test",
		ChannelID:    "ttl",
		MSPID:        "Org1MSP",
		CAURL:        "http://localhost:7054",
		KeyStorePath: "/tmp/fcw",
		Enrollment: EnrollmentConfig{
			EnrollmentID:     "admin",
			EnrollmentSecret: "adminpw",
			OU:               "COP",
		},
		Orderer: EndpointConfig{URL: "grpc://localhost:7050"},
		Peers: []EndpointConfig{
			{URL: "grpc://localhost:7051", EventURL: "grpc://localhost:7053"},
			{URL: "grpc://localhost:8051"},
		},
	}
}

func writeYAML(t *testing.T, c *Config) string {
	raw, err := yaml.Marshal(c)
	require.NoError(t, err)

	dir, err := ioutil.TempDir("", "fcwconfig")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, raw, 0600))
	return path
}

func TestFromFile(t *testing.T) {
	c := newTestConfig()
	c.Peers[1].SSLTargetNameOverride = "peer1.org1.example.com"
	c.Orderer.GRPCOptions = map[string]interface{}{
		"ssl-target-name-override": "orderer.example.com",
		"keep-alive-time":          "20s",
	}
	c.Timeouts.PeerResponse = 5 * time.Second

	loaded, err := FromFile(writeYAML(t, c))
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())

	assert.Equal(t, "test", loaded.UUID)
	assert.Equal(t, "ttl", loaded.ChannelID)
	assert.Equal(t, "Org1MSP", loaded.MSPID)
	assert.Equal(t, "admin", loaded.Enrollment.EnrollmentID)
	assert.Equal(t, "COP", loaded.Enrollment.OU)
	assert.True(t, loaded.UsesCA())

	require.Len(t, loaded.Peers, 2)
	assert.Equal(t, "grpc://localhost:7051", loaded.Peers[0].URL)
	assert.Equal(t, "grpc://localhost:7053", loaded.Peers[0].EventSource())
	assert.Equal(t, "grpc://localhost:8051", loaded.Peers[1].EventSource())
	assert.Equal(t, "peer1.org1.example.com", loaded.Peers[1].ServerName())
	assert.Equal(t, "orderer.example.com", loaded.Orderer.ServerName())

	assert.Equal(t, 5*time.Second, loaded.Timeouts.PeerResponse)
	assert.Equal(t, defaultOrdererResponseTimeout, loaded.Timeouts.OrdererResponse)
	assert.Equal(t, defaultDialTimeout, loaded.Timeouts.Dial)
	assert.Equal(t, "info", loaded.Logging.Level)
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("FCW_CHANNELID", "envchannel")
	os.Setenv("FCW_UUID", "envuuid")
	defer os.Unsetenv("FCW_CHANNELID")
	defer os.Unsetenv("FCW_UUID")

	loaded, err := FromFile(writeYAML(t, newTestConfig()))
	require.NoError(t, err)
	assert.Equal(t, "envchannel", loaded.ChannelID)
	assert.Equal(t, "envuuid", loaded.UUID)
}

func TestFromRaw(t *testing.T) {
	raw := []byte(`{"uuid":"u1","channelId":"ch","mspId":"Org1MSP","keyStorePath":"/tmp/ks",
		"enrollment":{"enrollmentID":"user1","keyPath":"/k","certPath":"/c"},
		"orderer":{"url":"grpc://o:7050"},"peers":[{"url":"grpc://p:7051"}]}`)
	loaded, err := FromRaw(raw, "json")
	require.NoError(t, err)
	assert.NoError(t, loaded.Validate())
	assert.False(t, loaded.UsesCA())

	_, err = FromRaw([]byte("{not json"), "json")
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))

	_, err = FromFile("/does/not/exist.yaml")
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"missing uuid", func(c *Config) { c.UUID = "" }},
		{"missing channel", func(c *Config) { c.ChannelID = "" }},
		{"missing msp", func(c *Config) { c.MSPID = "" }},
		{"missing keystore", func(c *Config) { c.KeyStorePath = "" }},
		{"missing orderer", func(c *Config) { c.Orderer.URL = "" }},
		{"no peers", func(c *Config) { c.Peers = nil }},
		{"peer without url", func(c *Config) { c.Peers[1].URL = "" }},
		{"missing enrollment id", func(c *Config) { c.Enrollment.EnrollmentID = "" }},
		{"secret and key", func(c *Config) { c.Enrollment.Key = "pem" }},
		{"secret without ca", func(c *Config) { c.CAURL = "" }},
		{"neither form", func(c *Config) { c.Enrollment.EnrollmentSecret = "" }},
		{"key without cert", func(c *Config) {
			c.Enrollment.EnrollmentSecret = ""
			c.Enrollment.Key = "pem"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestConfig()
			tc.modify(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, fcwerrors.IsKind(err, fcwerrors.ConfigurationError))
		})
	}

	assert.NoError(t, newTestConfig().Validate())
}

func TestLoadMaterial(t *testing.T) {
	dir, err := ioutil.TempDir("", "fcwmaterial")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	certPath := filepath.Join(dir, "cert.pem")
	require.NoError(t, ioutil.WriteFile(certPath, []byte("CERT"), 0600))

	e := EnrollmentConfig{EnrollmentID: "user1", Key: "KEY", CertPath: certPath}
	key, cert, err := e.LoadMaterial()
	require.NoError(t, err)
	assert.Equal(t, []byte("KEY"), key)
	assert.Equal(t, []byte("CERT"), cert)

	e.CertPath = filepath.Join(dir, "missing.pem")
	_, _, err = e.LoadMaterial()
	assert.True(t, fcwerrors.IsKind(err, fcwerrors.CredentialError))
}

func TestTimeoutDefaults(t *testing.T) {
	to := Timeouts{EventReg: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, to.EventReg)
	assert.Equal(t, defaultPeerResponseTimeout, to.PeerResponse)
	assert.Equal(t, defaultCARequestTimeout, to.CARequest)
}
