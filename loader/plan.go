// Package loader reads mapping plans: the sources a session reads from, the
// directives it applies and the session settings, in one YAML or JSON file.
package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/amor/amor-go/adapters"
	"github.com/amor/amor-go/mapping"
	"github.com/amor/amor-go/session"
	"github.com/amor/amor-go/store"
)

// Plan is the decoded form of a plan file
type Plan struct {
	Session    SessionSettings          `json:"session" yaml:"session"`
	Auth       AuthSettings             `json:"auth" yaml:"auth"`
	Sources    []adapters.SourceConfig  `json:"sources" yaml:"sources"`
	Directives []adapters.DirectiveSpec `json:"directives" yaml:"directives"`

	// BaseDir resolves relative file paths; LoadFromFile sets it to the plan's
	// directory
	BaseDir string `json:"-" yaml:"-"`
}

// SessionSettings configure the session a plan populates
type SessionSettings struct {
	// OverwriteKeyValues defaults to true when omitted
	OverwriteKeyValues *bool  `json:"overwrite_key_values" yaml:"overwrite_key_values"`
	FailFast           bool   `json:"fail_fast" yaml:"fail_fast"`
	SlotKeys           string `json:"slot_keys" yaml:"slot_keys"`
	SlotPrefix         string `json:"slot_prefix" yaml:"slot_prefix"`
	Locale             string `json:"locale" yaml:"locale"`
	// DefaultContent is a snapshot file the session starts from
	DefaultContent string `json:"default_content" yaml:"default_content"`
}

// AuthSettings select the authenticator used before the first fetch. The
// token itself is read from the environment variable TokenEnv.
type AuthSettings struct {
	Method   string `json:"method" yaml:"method"`
	Header   string `json:"header" yaml:"header"`
	TokenEnv string `json:"token_env" yaml:"token_env"`
	Username string `json:"username" yaml:"username"`
}

// LoadFromFile reads a plan from a YAML/JSON file.
func LoadFromFile(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("plan path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading plan")
	}
	plan, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	plan.BaseDir = filepath.Dir(path)
	return plan, nil
}

// Decode parses plan data, choosing JSON or YAML by the extension of name,
// and validates the result
func Decode(name string, data []byte) (*Plan, error) {
	var plan Plan
	var err error
	if strings.ToLower(filepath.Ext(name)) == ".json" {
		err = json.Unmarshal(data, &plan)
	} else {
		err = yaml.Unmarshal(data, &plan)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing plan %s", name)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks source and directive declarations without creating sources
func (p *Plan) Validate() error {
	ids := make(map[string]bool, len(p.Sources))
	for i, src := range p.Sources {
		if strings.TrimSpace(src.SourceID) == "" {
			return errors.Newf("source %d has no source_id", i)
		}
		if strings.TrimSpace(src.Type) == "" {
			return errors.Newf("source %q has empty type", src.SourceID)
		}
		if ids[src.SourceID] {
			return errors.Newf("source %q is defined twice", src.SourceID)
		}
		ids[src.SourceID] = true
	}
	for i, d := range p.Directives {
		if !ids[d.Source] {
			return errors.Newf("directive %d (%q) uses unknown source %q", i, d.Name, d.Source)
		}
		if !mapping.Strategy(d.Strategy).Valid() {
			return errors.WithHint(
				errors.Wrapf(mapping.ErrInvalidStrategy, "directive %q has strategy %d", d.Name, d.Strategy),
				"strategies are numbered 1 to 9; run `amorc strategies` for the list")
		}
	}
	if _, err := p.KeyGenerator(); err != nil {
		return err
	}
	return nil
}

// Policy returns the write policy the plan asks for
func (p *Plan) Policy() mapping.Policy {
	policy := mapping.DefaultPolicy()
	if p.Session.OverwriteKeyValues != nil {
		policy.OverwriteKeyValues = *p.Session.OverwriteKeyValues
	}
	policy.FailFast = p.Session.FailFast
	return policy
}

// KeyGenerator builds the slot key generator named by the plan
func (p *Plan) KeyGenerator() (mapping.KeyGenerator, error) {
	return mapping.NewKeyGenerator(p.Session.SlotKeys, p.Session.SlotPrefix)
}

// Authenticator returns the configured authenticator and the credentials it
// should be given
func (p *Plan) Authenticator() (adapters.Authenticator, adapters.Credentials, error) {
	creds := adapters.Credentials{Username: p.Auth.Username}
	if p.Auth.TokenEnv != "" {
		creds.Token = os.Getenv(p.Auth.TokenEnv)
	}
	auth, err := adapters.NewAuthenticator(p.Auth.Method, p.Auth.Header)
	if err != nil {
		return nil, creds, err
	}
	return auth, creds, nil
}

// Resolve makes a relative path relative to BaseDir
func (p *Plan) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// SessionOptions translates the session settings, loading default content
// when configured
func (p *Plan) SessionOptions(logger *zap.Logger) ([]session.Option, error) {
	keys, err := p.KeyGenerator()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithPolicy(p.Policy()),
		session.WithKeyGenerator(keys),
		session.WithLocale(p.Session.Locale),
	}
	if p.Session.DefaultContent != "" {
		data, err := os.ReadFile(p.Resolve(p.Session.DefaultContent))
		if err != nil {
			return nil, errors.Wrap(err, "reading default content")
		}
		snap, err := store.ParseSnapshot(data)
		if err != nil {
			return nil, errors.Wrapf(err, "default content %s", p.Session.DefaultContent)
		}
		opts = append(opts, session.WithSnapshot(snap))
	}
	return opts, nil
}

// BuildSources creates every declared source through the adapter registry.
// A file source's relative dir is resolved against BaseDir. On error the
// sources already created are closed.
func (p *Plan) BuildSources() (map[string]adapters.SourceProvider, error) {
	sources := make(map[string]adapters.SourceProvider, len(p.Sources))
	for _, cfg := range p.Sources {
		cfg = p.localize(cfg)
		src, err := adapters.CreateSource(cfg)
		if err != nil {
			for _, created := range sources {
				created.Close()
			}
			return nil, errors.Wrapf(err, "creating source %q", cfg.SourceID)
		}
		sources[cfg.SourceID] = src
	}
	return sources, nil
}

func (p *Plan) localize(cfg adapters.SourceConfig) adapters.SourceConfig {
	if cfg.Type != "file" {
		return cfg
	}
	dir := adapters.ConfigString(cfg.Config, "dir")
	if dir == "" {
		return cfg
	}
	copied := make(map[string]interface{}, len(cfg.Config))
	for k, v := range cfg.Config {
		copied[k] = v
	}
	copied["dir"] = p.Resolve(dir)
	cfg.Config = copied
	return cfg
}

// Transformer builds the sources and a DirectiveTransformer over them
func (p *Plan) Transformer(logger *zap.Logger) (*adapters.DirectiveTransformer, error) {
	sources, err := p.BuildSources()
	if err != nil {
		return nil, err
	}
	t, err := adapters.NewDirectiveTransformer(sources, p.Directives, adapters.WithTransformerLogger(logger))
	if err != nil {
		for _, src := range sources {
			src.Close()
		}
		return nil, err
	}
	return t, nil
}
