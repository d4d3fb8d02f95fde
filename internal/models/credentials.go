package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialType identifies what a credential is used to connect to.
type CredentialType string

const (
	CredentialSSHPassword CredentialType = "ssh_password"
	CredentialSSHKey      CredentialType = "ssh_key"
	CredentialDocker      CredentialType = "docker"
	CredentialKubernetes  CredentialType = "kubernetes"
	CredentialProxmox     CredentialType = "proxmox"
)

// KnownCredentialType reports whether t is one of the supported types.
func KnownCredentialType(t CredentialType) bool {
	switch t {
	case CredentialSSHPassword, CredentialSSHKey, CredentialDocker,
		CredentialKubernetes, CredentialProxmox:
		return true
	}
	return false
}

// Credential is a stored host-access secret. Ciphertext and Nonce are opaque
// outside the vault. At most one credential per (host, type) has IsDefault set.
type Credential struct {
	ID         uuid.UUID      `json:"id"`
	HostID     *uuid.UUID     `json:"host_id,omitempty"`
	Name       string         `json:"name"`
	Type       CredentialType `json:"type"`
	Username   string         `json:"username"`
	Ciphertext []byte         `json:"-"`
	Nonce      []byte         `json:"-"`
	IsDefault  bool           `json:"is_default"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CredentialMetadata is the caller-visible view of a credential.
// It never carries secret material.
type CredentialMetadata struct {
	ID        uuid.UUID      `json:"id"`
	HostID    *uuid.UUID     `json:"host_id,omitempty"`
	Name      string         `json:"name"`
	Type      CredentialType `json:"type"`
	Username  string         `json:"username"`
	IsDefault bool           `json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Metadata strips the encrypted payload from a credential.
func (c *Credential) Metadata() CredentialMetadata {
	return CredentialMetadata{
		ID:        c.ID,
		HostID:    c.HostID,
		Name:      c.Name,
		Type:      c.Type,
		Username:  c.Username,
		IsDefault: c.IsDefault,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
