/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package comm builds TLS and gRPC connection options for peer and orderer endpoints.
package comm

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/endpoint"
	fcwerrors "github.com/fcw-sdk/fabric-chain/pkg/errors"
)

var logger = logging.NewLogger("fcw/fab")

const maxCallMsgSize = 100 * 1024 * 1024

// LoadTLSCert reads and parses the PEM encoded root certificate at path.
func LoadTLSCert(path string) (*x509.Certificate, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.TransportConfigError, "LoadTLSCert", err, "reading TLS certificate failed")
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fcwerrors.New(fcwerrors.TransportConfigError, "LoadTLSCert", "no PEM data found in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fcwerrors.Wrap(fcwerrors.TransportConfigError, "LoadTLSCert", err, "certificate parsing failed")
	}
	return cert, nil
}

// TLSConfig returns a client TLS configuration trusting cert, with the server host override.
func TLSConfig(cert *x509.Certificate, serverName string) *tls.Config {
	pool := x509.NewCertPool()
	if cert != nil {
		pool.AddCert(cert)
	}
	return &tls.Config{RootCAs: pool, ServerName: serverName, MinVersion: tls.VersionTLS12}
}

// DialOptions returns the gRPC dial options for the endpoint. TLS is used when a
// root certificate is given, plaintext otherwise.
func DialOptions(ep config.EndpointConfig, cert *x509.Certificate, dialTimeout time.Duration) []grpc.DialOption {
	var opts []grpc.DialOption

	kap := keepalive.ClientParameters{
		Time:                cast.ToDuration(ep.GRPCOptions["keep-alive-time"]),
		Timeout:             cast.ToDuration(ep.GRPCOptions["keep-alive-timeout"]),
		PermitWithoutStream: cast.ToBool(ep.GRPCOptions["keep-alive-permit"]),
	}
	if kap.Time > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(kap))
	}

	failFast := true
	if v, ok := ep.GRPCOptions["fail-fast"]; ok {
		failFast = cast.ToBool(v)
	}
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.WaitForReady(!failFast),
		grpc.MaxCallRecvMsgSize(maxCallMsgSize),
		grpc.MaxCallSendMsgSize(maxCallMsgSize),
	))

	if dialTimeout > 0 {
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: dialTimeout,
		}))
	}

	if cert != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(TLSConfig(cert, ep.ServerName()))))
	} else {
		allowInsecure := cast.ToBool(ep.GRPCOptions["allow-insecure"])
		if endpoint.AttemptSecured(ep.URL, allowInsecure) {
			logger.Warnf("endpoint %s expects TLS but has no pemPath, connecting in plaintext", ep.URL)
		}
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	return opts
}

// Dial creates a lazily connecting client connection to the endpoint.
func Dial(ep config.EndpointConfig, cert *x509.Certificate, dialTimeout time.Duration) (*grpc.ClientConn, error) {
	return DialURL(ep.URL, ep, cert, dialTimeout)
}

// DialURL is Dial against an alternative URL of the endpoint, such as its event URL.
func DialURL(url string, ep config.EndpointConfig, cert *x509.Certificate, dialTimeout time.Duration) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint.ToAddress(url), DialOptions(ep, cert, dialTimeout)...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating connection to %s failed", url)
	}
	return conn, nil
}
