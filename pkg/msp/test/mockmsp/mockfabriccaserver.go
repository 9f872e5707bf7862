/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mockmsp

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"

	cfsslapi "github.com/cloudflare/cfssl/api"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/internal/testutil"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
)

var logger = logging.NewLogger("fcw/msp")

// CAName is the name reported by the mock CA
const CAName = "ca.org1.example.com"

type enrollmentRequestNet struct {
	Request string `json:"certificate_request"`
	CAName  string `json:"caname,omitempty"`
}

// MockFabricCAServer is a mock Fabric CA enrolling registered users
type MockFabricCAServer struct {
	CA *testutil.CA

	mtx         sync.Mutex
	users       map[string]string
	enrollments int
	srv         *httptest.Server
}

// NewMockFabricCAServer creates a CA that accepts the given enrollment ID to secret pairs
func NewMockFabricCAServer(users map[string]string) (*MockFabricCAServer, error) {
	ca, err := testutil.NewCA(CAName)
	if err != nil {
		return nil, err
	}
	return &MockFabricCAServer{CA: ca, users: users}, nil
}

// Start the mock CA and return its URL
func (s *MockFabricCAServer) Start() string {
	if s.srv != nil {
		panic("already started")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/enroll", s.enroll)
	s.srv = httptest.NewServer(mux)
	logger.Debugf("HTTP Server started on %s", s.srv.URL)
	return s.srv.URL
}

// Close stops the mock CA
func (s *MockFabricCAServer) Close() {
	if s.srv != nil {
		s.srv.Close()
	}
}

// Enrollments returns the number of certificates issued
func (s *MockFabricCAServer) Enrollments() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.enrollments
}

func sendError(w http.ResponseWriter, httpStatus int, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(cfsslapi.NewErrorResponse(msg, code)); err != nil {
		logger.Error(err)
	}
}

func (s *MockFabricCAServer) enroll(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, 0, "method not allowed")
		return
	}

	id, secret, ok := req.BasicAuth()
	s.mtx.Lock()
	expected, registered := s.users[id]
	s.mtx.Unlock()
	if !ok || !registered || expected != secret {
		sendError(w, http.StatusUnauthorized, 20, "Authentication failure")
		return
	}

	var reqNet enrollmentRequestNet
	if err := json.NewDecoder(req.Body).Decode(&reqNet); err != nil {
		sendError(w, http.StatusBadRequest, 0, err.Error())
		return
	}

	certPEM, err := s.issue(reqNet.Request)
	if err != nil {
		sendError(w, http.StatusBadRequest, 0, err.Error())
		return
	}

	s.mtx.Lock()
	s.enrollments++
	s.mtx.Unlock()

	resp := map[string]interface{}{
		"Cert": base64.StdEncoding.EncodeToString(certPEM),
		"ServerInfo": map[string]interface{}{
			"CAName":  CAName,
			"CAChain": base64.StdEncoding.EncodeToString(s.CA.CertPEM),
		},
	}
	if err := cfsslapi.SendResponse(w, resp); err != nil {
		logger.Error(err)
	}
}

func (s *MockFabricCAServer) issue(csrPEM string) ([]byte, error) {
	block, _ := pem.Decode([]byte(csrPEM))
	if block == nil {
		return nil, errors.New("invalid certificate request")
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, err
	}
	if err = csr.CheckSignature(); err != nil {
		return nil, err
	}
	pub, ok := csr.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("only ECDSA keys are supported")
	}
	var ou string
	if len(csr.Subject.OrganizationalUnit) > 0 {
		ou = csr.Subject.OrganizationalUnit[0]
	}
	return s.CA.Issue(pub, csr.Subject.CommonName, ou)
}
