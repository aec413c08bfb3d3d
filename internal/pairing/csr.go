package pairing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// GenerateCSR creates an ECDSA P-256 key and a PEM-encoded certificate
// signing request for commonName ("<realm>/<device_id>").
func GenerateCSR(commonName string) (csrPEM, keyPEM []byte, err error) {
	const op = "pairing.GenerateCSR"
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, asterr.New(asterr.KindTLS, op, err)
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: commonName,
		},
	}

	csrDER, err := x509.CreateCertificateRequest(rand.Reader, &template, priv)
	if err != nil {
		return nil, nil, asterr.New(asterr.KindTLS, op, err)
	}
	csrPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrDER})

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, asterr.New(asterr.KindTLS, op, err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return csrPEM, keyPEM, nil
}

// ParseCommonName extracts "<realm>/<device_id>" from a PEM-encoded leaf
// certificate's subject common name, yielding the device's base topic.
func ParseCommonName(certPEM []byte) (realm, deviceID string, err error) {
	const op = "pairing.ParseCommonName"
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", "", asterr.New(asterr.KindClientCertInvalid, op, fmt.Errorf("no PEM block found"))
	}
	cert, parseErr := x509.ParseCertificate(block.Bytes)
	if parseErr != nil {
		return "", "", asterr.New(asterr.KindClientCertInvalid, op, parseErr)
	}
	cn := cert.Subject.CommonName
	slash := -1
	for i := 0; i < len(cn); i++ {
		if cn[i] == '/' {
			slash = i
			break
		}
	}
	if slash < 0 {
		return "", "", asterr.New(asterr.KindClientCertInvalid, op, fmt.Errorf("common name %q missing realm/device_id separator", cn))
	}
	return cn[:slash], cn[slash+1:], nil
}
