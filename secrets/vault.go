package secrets

import (
	"context"

	vault "github.com/hashicorp/vault/api"
	approle "github.com/hashicorp/vault/api/auth/approle"

	"github.com/supaconn/supaconn/errors"
)

type VaultConfig struct {
	Address   string
	RoleID    string
	SecretID  string
	MountPath string
	// Name of the KVv2 secret holding the connection parameters.
	SecretName string
}

// Vault is a Store backed by a HashiCorp Vault KVv2 secret, read once at
// construction time.
type Vault struct {
	data map[string]string
}

func NewVault(ctx context.Context, c VaultConfig) (*Vault, error) {
	client, err := vault.NewClient(&vault.Config{Address: c.Address})
	if err != nil {
		return nil, errors.Wrap(err, "error in creating vault client")
	}

	appRoleAuth, err := approle.NewAppRoleAuth(c.RoleID, &approle.SecretID{FromString: c.SecretID})
	if err != nil {
		return nil, errors.Wrap(err, "error in initializing approle auth")
	}

	authInfo, err := client.Auth().Login(ctx, appRoleAuth)
	if err != nil {
		return nil, errors.Wrap(err, "error in vault login")
	}
	if authInfo == nil {
		return nil, errors.New("no auth info returned after vault login")
	}

	secret, err := client.KVv2(c.MountPath).Get(ctx, c.SecretName)
	if err != nil {
		return nil, errors.Wrap(err, "error in reading secret '%s'", c.SecretName)
	}

	data := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if s, ok := v.(string); ok {
			data[k] = s
		}
	}

	return &Vault{data: data}, nil
}

func (v *Vault) Get(key string) (string, bool) {
	s, ok := v.data[key]
	return s, ok
}
