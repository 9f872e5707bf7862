/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package gopackager packages Go chaincode sources for installation on peers.
package gopackager

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"go/build"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/fab/resource"
)

// Descriptor is a file to add to the package
type Descriptor struct {
	name string
	fqp  string
}

// A list of file extensions that should be packaged into the .tar.gz.
// Files with all other file extenstions will be excluded to minimize the size
// of the install payload.
var keep = []string{".c", ".h", ".s", ".go", ".yaml", ".json"}

var logger = logging.NewLogger("fcw/fab")

// NewCCPackage creates a Go chaincode package. A relative chaincodePath is
// resolved against goPath/src (goPath defaults to the first GOPATH entry); an
// absolute chaincodePath is packaged as src/<base name of the directory>.
func NewCCPackage(chaincodePath string, goPath string) (*resource.CCPackage, error) {
	if chaincodePath == "" {
		return nil, errors.New("chaincode path must be provided")
	}

	var projDir, root string
	if filepath.IsAbs(chaincodePath) {
		projDir = filepath.Clean(chaincodePath)
		root = filepath.Dir(projDir)
	} else {
		gp := goPath
		if gp == "" {
			gp = defaultGoPath()
			if gp == "" {
				return nil, errors.New("GOPATH not defined")
			}
			logger.Debugf("Default GOPATH=%s", gp)
		}
		projDir = filepath.Join(gp, "src", chaincodePath)
		root = filepath.Join(gp, "src")
	}

	logger.Debugf("packaging chaincode sources in %s", projDir)

	descriptors, err := findSource(root, projDir)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, errors.Errorf("no chaincode sources found in %s", projDir)
	}
	tarBytes, err := generateTarGz(descriptors)
	if err != nil {
		return nil, err
	}

	return &resource.CCPackage{Type: pb.ChaincodeSpec_GOLANG, Code: tarBytes}, nil
}

// PackagePath returns the path the peer builds the chaincode at: chaincodePath
// itself when relative, its base name when absolute.
func PackagePath(chaincodePath string) string {
	if filepath.IsAbs(chaincodePath) {
		return filepath.Base(chaincodePath)
	}
	return filepath.ToSlash(chaincodePath)
}

// findSource walks filePath and returns a descriptor for every source file,
// named src/<path relative to root>.
func findSource(root string, filePath string) ([]*Descriptor, error) {
	var descriptors []*Descriptor
	err := filepath.Walk(filePath,
		func(p string, fileInfo os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fileInfo.Mode().IsRegular() && isSource(p) {
				relPath, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				name := path.Join("src", filepath.ToSlash(relPath))
				if strings.Contains(name, "/META-INF/") {
					name = name[strings.Index(name, "/META-INF/")+1:]
				}
				descriptors = append(descriptors, &Descriptor{name: name, fqp: p})
			}
			return nil
		})

	return descriptors, err
}

func isSource(filePath string) bool {
	var extension = filepath.Ext(filePath)
	for _, v := range keep {
		if v == extension {
			return true
		}
	}
	return false
}

// generateTarGz creates a .tar.gz stream from the descriptors
func generateTarGz(descriptors []*Descriptor) ([]byte, error) {
	var codePackage bytes.Buffer
	gw := gzip.NewWriter(&codePackage)
	tw := tar.NewWriter(gw)
	for _, v := range descriptors {
		logger.Debugf("generateTarGz for %s", v.fqp)
		err := packEntry(tw, gw, v)
		if err != nil {
			err1 := closeStream(tw, gw)
			if err1 != nil {
				return nil, errors.Wrapf(err, "packEntry failed and close error %s", err1)
			}
			return nil, errors.Wrap(err, "packEntry failed")
		}
	}
	err := closeStream(tw, gw)
	if err != nil {
		return nil, errors.Wrap(err, "closeStream failed")
	}
	return codePackage.Bytes(), nil
}

func closeStream(tw io.Closer, gw io.Closer) error {
	err := tw.Close()
	if err != nil {
		return err
	}
	return gw.Close()
}

func packEntry(tw *tar.Writer, gw *gzip.Writer, descriptor *Descriptor) error {
	file, err := os.Open(descriptor.fqp)
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warnf("error file close %s", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	header := new(tar.Header)
	header.Name = descriptor.name
	header.Size = stat.Size()
	header.Mode = int64(stat.Mode())
	// zero times keep the package bytes stable across installs
	header.ModTime = time.Time{}
	header.AccessTime = time.Time{}
	header.ChangeTime = time.Time{}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tw, file); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return gw.Flush()
}

// defaultGoPath returns the system's default GOPATH. If the system
// has multiple GOPATHs then the first is used.
func defaultGoPath() string {
	gps := filepath.SplitList(build.Default.GOPATH)
	if len(gps) == 0 {
		return ""
	}
	return gps[0]
}
