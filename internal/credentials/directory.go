package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/storage"
	"github.com/hostpulse/hostpulse/internal/vault"
)

// ValidationError rejects malformed credential input before anything is
// persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid credential %s: %s", e.Field, e.Reason)
}

// CreateInput is the caller-supplied material for a new credential.
// Secret fields are encrypted immediately and never stored or returned
// in the clear.
type CreateInput struct {
	HostID     *uuid.UUID
	Name       string
	Type       models.CredentialType
	Username   string
	Password   string
	PrivateKey string
	Passphrase string
	Token      string
	Extra      map[string]string
	IsDefault  bool
}

// Directory manages credentials for monitored hosts.
type Directory struct {
	store *storage.CredentialStore
	vault *vault.Vault
}

// NewDirectory creates a Directory backed by store, encrypting with v.
func NewDirectory(store *storage.CredentialStore, v *vault.Vault) *Directory {
	return &Directory{store: store, vault: v}
}

// Create validates, encrypts, and stores a new credential, returning its
// metadata. The first credential for a (host, type) becomes the default
// automatically.
func (d *Directory) Create(ctx context.Context, in CreateInput) (models.CredentialMetadata, error) {
	if err := validate(in); err != nil {
		return models.CredentialMetadata{}, err
	}

	secret := &vault.Secret{
		Kind:       in.Type,
		Password:   in.Password,
		PrivateKey: in.PrivateKey,
		Passphrase: in.Passphrase,
		Token:      in.Token,
		Extra:      in.Extra,
	}
	ciphertext, nonce, err := d.vault.Encrypt(secret)
	if err != nil {
		return models.CredentialMetadata{}, fmt.Errorf("encrypt credential: %w", err)
	}

	isDefault := in.IsDefault
	if !isDefault && in.HostID != nil {
		n, err := d.store.CountForHostType(ctx, *in.HostID, in.Type)
		if err != nil {
			return models.CredentialMetadata{}, err
		}
		isDefault = n == 0
	}

	cred := &models.Credential{
		HostID:     in.HostID,
		Name:       in.Name,
		Type:       in.Type,
		Username:   in.Username,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		IsDefault:  isDefault,
	}
	if err := d.store.Create(ctx, cred); err != nil {
		return models.CredentialMetadata{}, err
	}
	return cred.Metadata(), nil
}

// Get returns credential metadata by id.
func (d *Directory) Get(ctx context.Context, id uuid.UUID) (models.CredentialMetadata, error) {
	cred, err := d.store.Get(ctx, id)
	if err != nil {
		return models.CredentialMetadata{}, err
	}
	return cred.Metadata(), nil
}

// ListForHost returns metadata for all of a host's credentials.
func (d *Directory) ListForHost(ctx context.Context, hostID uuid.UUID) ([]models.CredentialMetadata, error) {
	creds, err := d.store.ListForHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	out := make([]models.CredentialMetadata, 0, len(creds))
	for i := range creds {
		out = append(out, creds[i].Metadata())
	}
	return out, nil
}

// SetDefault makes the credential the default for its (host, type).
func (d *Directory) SetDefault(ctx context.Context, id uuid.UUID) error {
	return d.store.SetDefault(ctx, id)
}

// Delete removes a credential.
func (d *Directory) Delete(ctx context.Context, id uuid.UUID) error {
	return d.store.Delete(ctx, id)
}

// Secret decrypts a credential's payload for the collection layer.
func (d *Directory) Secret(ctx context.Context, id uuid.UUID) (*vault.Secret, error) {
	cred, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.vault.Decrypt(cred.Ciphertext, cred.Nonce)
}

// DefaultSecret resolves the default SSH credential for a host, preferring
// key auth over password auth, and returns the username together with the
// decrypted secret. It satisfies the collector's CredentialSource.
func (d *Directory) DefaultSecret(ctx context.Context, hostID uuid.UUID) (string, *vault.Secret, error) {
	for _, t := range []models.CredentialType{models.CredentialSSHKey, models.CredentialSSHPassword} {
		cred, err := d.store.GetDefaultForHost(ctx, hostID, t)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		secret, err := d.vault.Decrypt(cred.Ciphertext, cred.Nonce)
		if err != nil {
			return "", nil, err
		}
		return cred.Username, secret, nil
	}
	return "", nil, storage.ErrNotFound
}

func validate(in CreateInput) error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !models.KnownCredentialType(in.Type) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", in.Type)}
	}
	switch in.Type {
	case models.CredentialSSHPassword:
		if in.Password == "" {
			return &ValidationError{Field: "password", Reason: "required for ssh_password"}
		}
	case models.CredentialSSHKey:
		if in.PrivateKey == "" {
			return &ValidationError{Field: "private_key", Reason: "required for ssh_key"}
		}
	case models.CredentialDocker, models.CredentialKubernetes, models.CredentialProxmox:
		if in.Token == "" && in.Password == "" {
			return &ValidationError{Field: "token", Reason: "token or password required"}
		}
	}
	return nil
}
