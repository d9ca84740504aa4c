package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretSource yields the server-held key used to verify checkout
// signatures. The secret never leaves the server.
type SecretSource interface {
	Secret(ctx context.Context) (string, error)
}

// StaticSecret is a secret supplied directly, e.g. from an env var.
type StaticSecret string

func (s StaticSecret) Secret(context.Context) (string, error) {
	if s == "" {
		return "", ErrMissingSecret
	}
	return string(s), nil
}

// SecretManagerSource reads the key from Google Secret Manager and keeps
// it in memory after the first successful read.
type SecretManagerSource struct {
	client    *secretmanager.Client
	projectID string
	secretID  string
	version   string

	mu     sync.Mutex
	cached string
}

// NewSecretManagerSource builds a source for
// projects/<projectID>/secrets/<secretID>/versions/<version>.
// An empty version means "latest".
func NewSecretManagerSource(client *secretmanager.Client, projectID, secretID, version string) *SecretManagerSource {
	return &SecretManagerSource{
		client:    client,
		projectID: strings.TrimSpace(projectID),
		secretID:  strings.TrimSpace(secretID),
		version:   strings.TrimSpace(version),
	}
}

// Name is the fully qualified secret version resource name.
func (s *SecretManagerSource) Name() string {
	ver := s.version
	if ver == "" {
		ver = "latest"
	}
	return "projects/" + s.projectID + "/secrets/" + s.secretID + "/versions/" + ver
}

func (s *SecretManagerSource) Secret(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		return s.cached, nil
	}
	if s.client == nil {
		return "", errors.New("payment: secret manager client is nil")
	}
	if s.projectID == "" || s.secretID == "" {
		return "", ErrMissingSecret
	}

	name := s.Name()
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("payment: access secret %s: %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("payment: empty secret payload (%s)", name)
	}

	value := strings.TrimSpace(string(resp.Payload.Data))
	if value == "" {
		return "", ErrMissingSecret
	}
	s.cached = value
	return value, nil
}
