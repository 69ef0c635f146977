package domain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sufield/certkeeper/internal/core/errors"
)

// SourceType names where a certificate is fetched from.
type SourceType string

const (
	// SourceTypeRemoteSecret fetches a base64 certificate blob from a Vault KV secret.
	SourceTypeRemoteSecret SourceType = "remote-secret-source"
	// SourceTypeLocalKeystore looks a certificate up by thumbprint in a local keystore.
	SourceTypeLocalKeystore SourceType = "local-keystore-source"
)

// Older configuration files use these names.
var sourceTypeAliases = map[string]SourceType{
	"kv-default-credentials": SourceTypeRemoteSecret,
	"local-store":            SourceTypeLocalKeystore,
}

// ParseSourceType maps a configured type string onto a SourceType. Unknown
// strings are returned verbatim so the loader can report them at refresh time.
func ParseSourceType(s string) SourceType {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := sourceTypeAliases[trimmed]; ok {
		return alias
	}
	return SourceType(trimmed)
}

// IsKnown reports whether t is one of the supported source types.
func (t SourceType) IsKnown() bool {
	return t == SourceTypeRemoteSecret || t == SourceTypeLocalKeystore
}

func (t SourceType) String() string {
	return string(t)
}

// SourceTypeDecodeHook provides a mapstructure decode hook for SourceType so
// configuration aliases are normalized while unmarshalling.
func SourceTypeDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(SourceType("")) {
			return data, nil
		}

		str, ok := data.(string)
		if !ok {
			return data, nil
		}
		return ParseSourceType(str), nil
	}
}

// Descriptor is one configured certificate. Descriptors are read-only for the
// life of the process.
type Descriptor struct {
	Name string     `mapstructure:"certificate_name" yaml:"certificate_name" validate:"required"`
	Type SourceType `mapstructure:"type" yaml:"type" validate:"required"`

	// Used when Type is remote-secret-source.
	VaultURI   string `mapstructure:"vault_uri" yaml:"vault_uri,omitempty" validate:"omitempty,vault_uri"`
	SecretName string `mapstructure:"secret_name" yaml:"secret_name,omitempty"`

	// Used when Type is local-keystore-source.
	Thumbprint string `mapstructure:"thumbprint" yaml:"thumbprint,omitempty" validate:"omitempty,thumbprint"`
}

// SourceSpec is the resolved, type-checked form of a descriptor's source
// parameters. Its implementations are RemoteSecretSpec and LocalKeystoreSpec.
type SourceSpec interface {
	SourceType() SourceType
	sourceSpec()
}

// RemoteSecretSpec locates a certificate stored as a secret in Vault.
type RemoteSecretSpec struct {
	VaultURI   string
	SecretName string
}

// SourceType implements SourceSpec.
func (RemoteSecretSpec) SourceType() SourceType { return SourceTypeRemoteSecret }
func (RemoteSecretSpec) sourceSpec()            {}

// LocalKeystoreSpec locates a certificate in the local keystore.
type LocalKeystoreSpec struct {
	Thumbprint string
}

// SourceType implements SourceSpec.
func (LocalKeystoreSpec) SourceType() SourceType { return SourceTypeLocalKeystore }
func (LocalKeystoreSpec) sourceSpec()            {}

// SourceSpec validates the fields required by the descriptor's type and
// returns the matching variant. Missing fields wrap ErrMissingDescriptorField
// and carry a *errors.ValidationError; unsupported types wrap ErrUnknownSourceType.
func (d Descriptor) SourceSpec() (SourceSpec, error) {
	switch d.Type {
	case SourceTypeRemoteSecret:
		if strings.TrimSpace(d.SecretName) == "" {
			return nil, d.missing("secret_name", d.SecretName)
		}
		if strings.TrimSpace(d.VaultURI) == "" {
			return nil, d.missing("vault_uri", d.VaultURI)
		}
		return RemoteSecretSpec{VaultURI: strings.TrimSpace(d.VaultURI), SecretName: strings.TrimSpace(d.SecretName)}, nil

	case SourceTypeLocalKeystore:
		if strings.TrimSpace(d.Thumbprint) == "" {
			return nil, d.missing("thumbprint", d.Thumbprint)
		}
		return LocalKeystoreSpec{Thumbprint: NormalizeThumbprint(d.Thumbprint)}, nil

	default:
		return nil, errors.NewDomainError(errors.ErrUnknownSourceType,
			fmt.Errorf("certificate %q has type %q", d.Name, d.Type))
	}
}

func (d Descriptor) missing(field, value string) error {
	return errors.NewDomainError(errors.ErrMissingDescriptorField, &errors.ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("required for %s certificate %q", d.Type, d.Name),
	})
}
