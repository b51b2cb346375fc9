package thrippy

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// SecureCreds initializes gRPC client credentials, based on CLI flags:
// mTLS if a client cert and key are specified, TLS if only a server CA cert
// is specified, and insecure credentials in development mode.
func SecureCreds(cmd *cli.Command) (credentials.TransportCredentials, error) {
	// Both TLS and mTLS.
	caPath := cmd.String("thrippy-server-ca-cert")
	nameOverride := cmd.String("thrippy-server-name-override")
	// Only mTLS.
	certPath := cmd.String("thrippy-client-cert")
	keyPath := cmd.String("thrippy-client-key")

	if caPath == "" {
		if cmd.Bool("dev") {
			return insecureCreds(), nil
		}
		return nil, errors.New("missing server CA cert file for gRPC client with TLS")
	}

	// Using mTLS requires the client's X.509 PEM-encoded public cert
	// and private key. If one of them is missing it's an error.
	if certPath == "" && keyPath != "" {
		return nil, errors.New("missing client public cert file for gRPC client with mTLS")
	}
	if certPath != "" && keyPath == "" {
		return nil, errors.New("missing client private key file for gRPC client with mTLS")
	}

	// If both of them are missing, we use TLS.
	if certPath == "" && keyPath == "" {
		return newClientTLSFromFile(caPath, nameOverride, nil)
	}

	// If all 3 are specified, we use mTLS.
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client PEM key pair for gRPC client with mTLS: %w", err)
	}

	return newClientTLSFromFile(caPath, nameOverride, []tls.Certificate{cert})
}

func insecureCreds() credentials.TransportCredentials {
	return insecure.NewCredentials()
}

// newClientTLSFromFile constructs TLS credentials from the provided root
// certificate authority certificate file(s) to validate server connections.
//
// This function is based on [credentials.NewClientTLSFromFile], but uses
// TLS 1.3 as the minimum version (instead of 1.2), and support mTLS too.
func newClientTLSFromFile(caPath, serverNameOverride string, certs []tls.Certificate) (credentials.TransportCredentials, error) {
	b, err := os.ReadFile(caPath) //gosec:disable G304 // Specified by admin.
	if err != nil {
		return nil, fmt.Errorf("failed to read server CA cert file for gRPC client: %w", err)
	}

	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(b) {
		return nil, errors.New("failed to parse server CA cert file for gRPC client")
	}

	cfg := &tls.Config{
		RootCAs:    cp,
		ServerName: serverNameOverride,
		MinVersion: tls.VersionTLS13,
	}
	if len(certs) > 0 {
		cfg.Certificates = certs
	}

	return credentials.NewTLS(cfg), nil
}
