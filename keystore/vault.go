package keystore

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

// Vault stores key pairs as secrets in a KV version 2 engine. Each identity
// lives at <mount>/data/<prefix>/<sha256(identity)> holding one msgpack
// record.
type Vault struct {
	client *api.Client
	mount  string
	prefix string

	wrapper *Wrapper
	log     *slog.Logger
}

// NewVault returns a store writing under mount/prefix. Vault already
// encrypts at rest; wrapper adds a second layer that Vault operators cannot
// remove.
func NewVault(client *api.Client, mount, prefix string, wrapper *Wrapper, log *slog.Logger) *Vault {
	if log == nil {
		log = slog.Default()
	}
	return &Vault{
		client:  client,
		mount:   strings.Trim(mount, "/"),
		prefix:  strings.Trim(prefix, "/"),
		wrapper: wrapper,
		log:     log,
	}
}

// NewVaultClient builds an API client for address authenticated with token.
func NewVaultClient(address, token string) (*api.Client, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)
	return client, nil
}

func (s *Vault) secretPath(kind, name string) string {
	return path.Join(s.mount, kind, s.prefix, name)
}

func (s *Vault) read(ctx context.Context, name string) (*record, error) {
	p := s.secretPath("data", name)

	secret, err := s.client.Logical().ReadWithContext(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		// Soft-deleted versions come back with data set to null.
		return nil, ErrNotFound
	}

	encoded, ok := data["record"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: record key missing in Vault data", ErrCorruptRecord)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return unmarshalRecord(raw)
}

// Get implements Store.
func (s *Vault) Get(ctx context.Context, identity string) (*crypto.KeyPair, error) {
	r, err := s.read(ctx, objectName(identity))
	if err != nil {
		return nil, err
	}
	if r.Identity != identity {
		return nil, fmt.Errorf("%w: identity mismatch", ErrCorruptRecord)
	}
	return r.keyPair(s.wrapper)
}

// Put implements Store.
func (s *Vault) Put(ctx context.Context, identity string, kp *crypto.KeyPair) error {
	if err := checkPut(identity, kp); err != nil {
		return err
	}

	start := time.Now()
	name := objectName(identity)

	createdAt := timeNow()
	if old, err := s.read(ctx, name); err == nil {
		createdAt = old.CreatedAt
	}

	r, err := newRecord(s.wrapper, identity, kp, createdAt)
	if err != nil {
		return err
	}
	raw, err := marshalRecord(r)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"data": map[string]interface{}{
			"record": base64.StdEncoding.EncodeToString(raw),
		},
	}
	if _, err := s.client.Logical().WriteWithContext(ctx, s.secretPath("data", name), body); err != nil {
		return fmt.Errorf("failed to write to Vault: %w", err)
	}

	s.log.Debug("Stored key pair in Vault",
		slog.String("name", name),
		slog.Bool("wrapped", r.Wrapped),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete implements Store. All versions and metadata are removed.
func (s *Vault) Delete(ctx context.Context, identity string) error {
	name := objectName(identity)
	if _, err := s.read(ctx, name); err != nil {
		return err
	}

	if _, err := s.client.Logical().DeleteWithContext(ctx, s.secretPath("metadata", name)); err != nil {
		return fmt.Errorf("failed to delete from Vault: %w", err)
	}
	return nil
}

// List implements Store.
func (s *Vault) List(ctx context.Context) ([]Entry, error) {
	secret, err := s.client.Logical().ListWithContext(ctx, s.secretPath("metadata", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to list Vault keys: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	keys, _ := secret.Data["keys"].([]interface{})
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		name, ok := k.(string)
		if !ok || strings.HasSuffix(name, "/") {
			continue
		}

		r, err := s.read(ctx, name)
		if err != nil {
			s.log.Warn("Skipping unreadable Vault secret", slog.String("name", name), "err", err)
			continue
		}
		e, err := r.entry()
		if err != nil {
			s.log.Warn("Skipping corrupt Vault secret", slog.String("name", name), "err", err)
			continue
		}
		out = append(out, e)
	}

	sortEntries(out)
	return out, nil
}
