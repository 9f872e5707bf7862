/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config holds the client configuration and loads it from files and
// FCW_ prefixed environment variables.
package config

import (
	"bytes"
	"io/ioutil"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
)

const (
	// EnvPrefix is the prefix of environment overrides, e.g. FCW_CHANNELID
	EnvPrefix = "FCW"

	defaultPeerResponseTimeout    = 30 * time.Second
	defaultOrdererResponseTimeout = 30 * time.Second
	defaultCARequestTimeout       = 10 * time.Second
	defaultEventRegTimeout        = 15 * time.Second
	defaultDialTimeout            = 5 * time.Second
)

// Config is the configuration of a single client instance.
type Config struct {
	// UUID identifies the client instance; keys and certificates are stored under it
	UUID         string           `mapstructure:"uuid" yaml:"uuid"`
	ChannelID    string           `mapstructure:"channelId" yaml:"channelId"`
	MSPID        string           `mapstructure:"mspId" yaml:"mspId"`
	CAURL        string           `mapstructure:"caUrl" yaml:"caUrl,omitempty"`
	KeyStorePath string           `mapstructure:"keyStorePath" yaml:"keyStorePath"`
	Enrollment   EnrollmentConfig `mapstructure:"enrollment" yaml:"enrollment"`
	Orderer      EndpointConfig   `mapstructure:"orderer" yaml:"orderer"`
	Peers        []EndpointConfig `mapstructure:"peers" yaml:"peers"`
	Timeouts     Timeouts         `mapstructure:"timeouts" yaml:"timeouts,omitempty"`
	Logging      LoggingConfig    `mapstructure:"logging" yaml:"logging,omitempty"`
}

// EnrollmentConfig selects how the signing identity is obtained. Either
// EnrollmentSecret (enrollment with the CA at Config.CAURL) or key and
// certificate material (inline PEM or file paths) must be given, not both.
type EnrollmentConfig struct {
	EnrollmentID     string `mapstructure:"enrollmentID" yaml:"enrollmentID"`
	EnrollmentSecret string `mapstructure:"enrollmentSecret" yaml:"enrollmentSecret,omitempty"`
	OU               string `mapstructure:"ou" yaml:"ou,omitempty"`
	Key              string `mapstructure:"key" yaml:"key,omitempty"`
	Cert             string `mapstructure:"cert" yaml:"cert,omitempty"`
	KeyPath          string `mapstructure:"keyPath" yaml:"keyPath,omitempty"`
	CertPath         string `mapstructure:"certPath" yaml:"certPath,omitempty"`
}

// EndpointConfig is a peer or orderer endpoint. An empty PemPath means plaintext.
type EndpointConfig struct {
	URL                   string                 `mapstructure:"url" yaml:"url"`
	EventURL              string                 `mapstructure:"eventUrl" yaml:"eventUrl,omitempty"`
	PemPath               string                 `mapstructure:"pemPath" yaml:"pemPath,omitempty"`
	SSLTargetNameOverride string                 `mapstructure:"sslTargetNameOverride" yaml:"sslTargetNameOverride,omitempty"`
	GRPCOptions           map[string]interface{} `mapstructure:"grpcOptions" yaml:"grpcOptions,omitempty"`
}

// Timeouts for network operations
type Timeouts struct {
	PeerResponse    time.Duration `mapstructure:"peerResponse" yaml:"peerResponse,omitempty"`
	OrdererResponse time.Duration `mapstructure:"ordererResponse" yaml:"ordererResponse,omitempty"`
	CARequest       time.Duration `mapstructure:"caRequest" yaml:"caRequest,omitempty"`
	EventReg        time.Duration `mapstructure:"eventReg" yaml:"eventReg,omitempty"`
	Dial            time.Duration `mapstructure:"dial" yaml:"dial,omitempty"`
}

// LoggingConfig configures the log backend
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`
	Format string `mapstructure:"format" yaml:"format,omitempty"`
}

// ServerName returns the TLS server name override of the endpoint, taken from
// SSLTargetNameOverride or the ssl-target-name-override gRPC option.
func (e EndpointConfig) ServerName() string {
	if e.SSLTargetNameOverride != "" {
		return e.SSLTargetNameOverride
	}
	return cast.ToString(e.GRPCOptions["ssl-target-name-override"])
}

// EventSource returns the URL to open deliver streams on
func (e EndpointConfig) EventSource() string {
	if e.EventURL != "" {
		return e.EventURL
	}
	return e.URL
}

// UsesCA returns true if the identity is enrolled with the CA
func (c *Config) UsesCA() bool {
	return c.Enrollment.EnrollmentSecret != "" && c.CAURL != ""
}

func (e EnrollmentConfig) hasMaterial() bool {
	return e.Key != "" || e.Cert != "" || e.KeyPath != "" || e.CertPath != ""
}

// LoadMaterial returns the PEM key and certificate to import. Inline PEM takes
// precedence over paths.
func (e EnrollmentConfig) LoadMaterial() (key []byte, cert []byte, err error) {
	key, err = pemOrFile(e.Key, e.KeyPath)
	if err != nil {
		return nil, nil, fcwerrors.Wrap(fcwerrors.CredentialError, "LoadMaterial", err, "reading enrollment key failed")
	}
	cert, err = pemOrFile(e.Cert, e.CertPath)
	if err != nil {
		return nil, nil, fcwerrors.Wrap(fcwerrors.CredentialError, "LoadMaterial", err, "reading enrollment certificate failed")
	}
	return key, cert, nil
}

func pemOrFile(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return b, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	const op = "Validate"

	if c.UUID == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "cannot enroll with undefined uuid")
	}
	if c.ChannelID == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "channelId is required")
	}
	if c.MSPID == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "mspId is required")
	}
	if c.KeyStorePath == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "keyStorePath is required")
	}
	if c.Orderer.URL == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "orderer url is required")
	}
	if len(c.Peers) == 0 {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "at least one peer is required")
	}
	for i, p := range c.Peers {
		if p.URL == "" {
			return fcwerrors.New(fcwerrors.ConfigurationError, op, "peer[%d] url is required", i)
		}
	}
	return c.Enrollment.validate(c.CAURL)
}

func (e EnrollmentConfig) validate(caURL string) error {
	const op = "Validate"

	if e.EnrollmentID == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollmentID is required")
	}
	hasSecret := e.EnrollmentSecret != ""
	hasMaterial := e.hasMaterial()

	switch {
	case hasSecret && hasMaterial:
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment must specify either a secret or key material, not both")
	case hasSecret && caURL == "":
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment secret requires caUrl")
	case hasSecret:
		return nil
	case !hasMaterial:
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment must specify either a secret or key material")
	}

	if e.Key == "" && e.KeyPath == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment key is required")
	}
	if e.Cert == "" && e.CertPath == "" {
		return fcwerrors.New(fcwerrors.ConfigurationError, op, "enrollment certificate is required")
	}
	return nil
}

// FromFile loads the configuration from a YAML or JSON file. Environment
// variables with the FCW_ prefix override file values.
func FromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.ConfigurationError, "FromFile", err, "reading config failed")
	}
	return unmarshal(v)
}

// FromRaw loads the configuration from raw bytes of the given type (yaml or json).
func FromRaw(raw []byte, configType string) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.ConfigurationError, "FromRaw", err, "reading config failed")
	}
	return unmarshal(v)
}

var envBoundKeys = []string{
	"uuid", "channelId", "mspId", "caUrl", "keyStorePath",
	"enrollment.enrollmentID", "enrollment.enrollmentSecret", "enrollment.ou",
	"enrollment.keyPath", "enrollment.certPath",
	"orderer.url", "orderer.pemPath", "orderer.sslTargetNameOverride",
	"logging.level", "logging.format",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envBoundKeys {
		// BindEnv only fails without a key
		_ = v.BindEnv(key)
	}

	v.SetDefault("timeouts.peerResponse", defaultPeerResponseTimeout)
	v.SetDefault("timeouts.ordererResponse", defaultOrdererResponseTimeout)
	v.SetDefault("timeouts.caRequest", defaultCARequestTimeout)
	v.SetDefault("timeouts.eventReg", defaultEventRegTimeout)
	v.SetDefault("timeouts.dial", defaultDialTimeout)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.ConfigurationError, "Unmarshal", err, "decoding config failed")
	}
	c.Timeouts.applyDefaults()
	return c, nil
}

// WithDefaults returns a copy of the timeouts with unset values defaulted
func (t Timeouts) WithDefaults() Timeouts {
	t.applyDefaults()
	return t
}

func (t *Timeouts) applyDefaults() {
	if t.PeerResponse <= 0 {
		t.PeerResponse = defaultPeerResponseTimeout
	}
	if t.OrdererResponse <= 0 {
		t.OrdererResponse = defaultOrdererResponseTimeout
	}
	if t.CARequest <= 0 {
		t.CARequest = defaultCARequestTimeout
	}
	if t.EventReg <= 0 {
		t.EventReg = defaultEventRegTimeout
	}
	if t.Dial <= 0 {
		t.Dial = defaultDialTimeout
	}
}
