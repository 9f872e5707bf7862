/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"bytes"
	reqContext "context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cfsslapi "github.com/cloudflare/cfssl/api"
	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/signer"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/common/errors/status"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/comm"
	"github.com/fcw-sdk/fabric-chain/pkg/core/cryptosuite"
)

// EnrollmentRequest asks the CA for an enrollment certificate
type EnrollmentRequest struct {
	Name   string
	Secret string
	OU     string
}

// EnrollmentResponse carries a freshly generated key and the certificate issued for it
type EnrollmentResponse struct {
	Key     *ecdsa.PrivateKey
	Cert    []byte
	CAName  string
	CAChain []byte
}

//go:generate mockgen -destination mocks/mockmsp.gen.go -package mock_msp . Enroller,KeyImporter

// Enroller obtains enrollment certificates from a CA
type Enroller interface {
	Enroll(ctx reqContext.Context, req *EnrollmentRequest) (*EnrollmentResponse, error)
}

// enrollmentRequestNet is the wire form of an enrollment request
type enrollmentRequestNet struct {
	signer.SignRequest
	CAName string `json:"caname,omitempty"`
}

// The enrollment response from the server
type enrollmentResponseNet struct {
	// Base64 encoded PEM-encoded ECert
	Cert string
	// The server information
	ServerInfo serverInfoResponseNet
}

type serverInfoResponseNet struct {
	// CAName is a unique name associated with fabric-ca-server's CA
	CAName string
	// Base64 encoding of PEM-encoded certificate chain
	CAChain string
}

// CAClient enrolls identities with a Fabric CA server over its REST API
type CAClient struct {
	url        string
	caName     string
	httpClient *http.Client
}

// CAOption configures a CAClient
type CAOption func(*CAClient) error

// WithCAName sets the name of the CA to enroll with on a multi-CA server
func WithCAName(name string) CAOption {
	return func(c *CAClient) error {
		c.caName = name
		return nil
	}
}

// WithHTTPTimeout sets the request timeout
func WithHTTPTimeout(timeout time.Duration) CAOption {
	return func(c *CAClient) error {
		c.httpClient.Timeout = timeout
		return nil
	}
}

// WithCATLSCert trusts cert when connecting to an https CA
func WithCATLSCert(cert *x509.Certificate) CAOption {
	return func(c *CAClient) error {
		c.httpClient.Transport = &http.Transport{TLSClientConfig: comm.TLSConfig(cert, "")}
		return nil
	}
}

// NewCAClient returns a client for the CA at url
func NewCAClient(url string, opts ...CAOption) (*CAClient, error) {
	if url == "" {
		return nil, errors.New("CA url is required")
	}
	c := &CAClient{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// URL returns the CA url
func (c *CAClient) URL() string {
	return c.url
}

// Enroll generates a key pair and a CSR, and has the CA sign it
func (c *CAClient) Enroll(ctx reqContext.Context, req *EnrollmentRequest) (*EnrollmentResponse, error) {
	if req == nil || req.Name == "" {
		return nil, errors.New("enrollmentID is required")
	}
	if req.Secret == "" {
		return nil, errors.New("enrollmentSecret is required")
	}
	logger.Debugf("Enrolling user [%s]", req.Name)

	key, err := cryptosuite.GenerateKey()
	if err != nil {
		return nil, err
	}
	csrPEM, err := GenCSR(key, req.Name, req.OU)
	if err != nil {
		return nil, errors.WithMessage(err, "failure generating CSR")
	}

	reqNet := &enrollmentRequestNet{CAName: c.caName}
	reqNet.SignRequest.Request = string(csrPEM)
	body, err := json.Marshal(reqNet)
	if err != nil {
		return nil, errors.Wrap(err, "marshal enrollment request failed")
	}

	post, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v1/enroll", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed posting to %s", c.url)
	}
	post.Header.Set("Content-Type", "application/json")
	post.SetBasicAuth(req.Name, req.Secret)

	var result enrollmentResponseNet
	if err := c.sendReq(post, &result); err != nil {
		return nil, err
	}

	cert, err := base64.StdEncoding.DecodeString(result.Cert)
	if err != nil {
		return nil, errors.Wrap(err, "invalid response format from server")
	}
	var caChain []byte
	if result.ServerInfo.CAChain != "" {
		caChain, err = base64.StdEncoding.DecodeString(result.ServerInfo.CAChain)
		if err != nil {
			return nil, errors.Wrap(err, "invalid CA chain in response from server")
		}
	}
	return &EnrollmentResponse{Key: key, Cert: cert, CAName: result.ServerInfo.CAName, CAChain: caChain}, nil
}

// GenCSR builds a PEM encoded certificate request with subject CN=<cn>, OU=<ou>
func GenCSR(key *ecdsa.PrivateKey, cn, ou string) ([]byte, error) {
	cr := &csr.CertificateRequest{CN: cn}
	if ou != "" {
		cr.Names = []csr.Name{{OU: ou}}
	}
	return csr.Generate(key, cr)
}

func (c *CAClient) sendReq(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s failure of request to %s", req.Method, req.URL)
	}
	defer resp.Body.Close() // nolint: errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	var body *cfsslapi.Response
	if len(respBody) > 0 {
		body = new(cfsslapi.Response)
		if err := json.Unmarshal(respBody, body); err != nil {
			return errors.Wrapf(err, "failed to parse response: %s", respBody)
		}
		if len(body.Errors) > 0 {
			var msgs []string
			for _, e := range body.Errors {
				msgs = append(msgs, fmt.Sprintf("Error Code: %d - %s", e.Code, e.Message))
			}
			return status.New(status.FabricCAServerStatus, int32(body.Errors[0].Code), strings.Join(msgs, "; "), nil)
		}
	}
	if resp.StatusCode >= 400 {
		return status.New(status.HTTPTransportStatus, int32(resp.StatusCode),
			fmt.Sprintf("failed with server status code %d", resp.StatusCode), []interface{}{req.URL.String()})
	}
	if body == nil {
		return errors.New("empty response body")
	}
	if !body.Success {
		return errors.New("server returned failure for request")
	}
	if result != nil {
		return mapstructure.Decode(body.Result, result)
	}
	return nil
}
