package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfigFile is returned when the target file fails validation.
var ErrInvalidConfigFile = errors.New("invalid configuration file")

// TargetConfig holds per-service settings from the configuration file.
// Zero values inherit from the defaults section and then from CLI flags.
type TargetConfig struct {
	// BaseURI is the scheme and host of the service, e.g. https://10.0.0.5.
	BaseURI string `yaml:"base_uri,omitempty" validate:"omitempty,url"`

	// Username and Password are expanded with environment variables,
	// so "${BMC_PASSWORD}" keeps secrets out of the file.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	Auth string `yaml:"auth,omitempty" validate:"omitempty,oneof=session basic none"`

	// Headers are sent with every request to this service.
	Headers map[string]string `yaml:"headers,omitempty" validate:"dive,keys,required,endkeys,required"`

	// Insecure skips TLS verification when set.
	Insecure *bool `yaml:"insecure,omitempty"`

	// Proxy is a SOCKS5 proxy address in "host:port" format.
	Proxy string `yaml:"proxy,omitempty" validate:"omitempty,hostname_port"`

	Root   string `yaml:"root,omitempty" validate:"omitempty,startswith=/"`
	Filter string `yaml:"filter,omitempty"`

	// RateLimit is requests per second; 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit,omitempty" validate:"gte=0"`
}

// File is the structure of the .redfishscan configuration file.
type File struct {
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// Targets maps a short name to a service definition.
	Targets map[string]TargetConfig `yaml:"targets,omitempty" validate:"dive"`
}

// Validate checks field formats with go-playground/validator and requires
// a base URI for every named target.
func (cf *File) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(cf); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msg := fmt.Sprintf("%s: rule '%s'", e.Namespace(), e.Tag())
				if e.Param() != "" {
					msg += fmt.Sprintf(" (expected: %s)", e.Param())
				}
				msgs = append(msgs, msg)
			}
			return fmt.Errorf("%w:\n  %s", ErrInvalidConfigFile, strings.Join(msgs, "\n  "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	for _, name := range cf.Names() {
		if cf.Targets[name].BaseURI == "" {
			return fmt.Errorf("%w: target %q has no base_uri", ErrInvalidConfigFile, name)
		}
	}
	return nil
}

// Names returns the configured target names in sorted order.
func (cf *File) Names() []string {
	names := make([]string, 0, len(cf.Targets))
	for name := range cf.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the merged settings for name. A name that is not
// configured is treated as a base URI and gets the defaults only.
func (cf *File) Lookup(name string) TargetConfig {
	result := cf.Defaults
	result.Headers = copyHeaders(cf.Defaults.Headers)

	entry, ok := cf.Targets[name]
	if !ok {
		result.BaseURI = name
		return result.expand()
	}

	result.BaseURI = entry.BaseURI
	if entry.Username != "" {
		result.Username = entry.Username
	}
	if entry.Password != "" {
		result.Password = entry.Password
	}
	if entry.Auth != "" {
		result.Auth = entry.Auth
	}
	if entry.Insecure != nil {
		result.Insecure = entry.Insecure
	}
	if entry.Proxy != "" {
		result.Proxy = entry.Proxy
	}
	if entry.Root != "" {
		result.Root = entry.Root
	}
	if entry.Filter != "" {
		result.Filter = entry.Filter
	}
	if entry.RateLimit != 0 {
		result.RateLimit = entry.RateLimit
	}
	if len(entry.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range entry.Headers {
			result.Headers[k] = v
		}
	}
	return result.expand()
}

func (tc TargetConfig) expand() TargetConfig {
	tc.Username = os.ExpandEnv(tc.Username)
	tc.Password = os.ExpandEnv(tc.Password)
	return tc
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
