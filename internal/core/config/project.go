package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project configuration file name.
const DefaultFileName = "agentkit.yaml"

// =============================================================================
// Project Config
// =============================================================================

// ProjectConfig is the whole agentkit.yaml document.
type ProjectConfig struct {
	Common      CommonConfig `yaml:"common"`
	LaunchTypes LaunchTypes  `yaml:"launch_types"`
}

// LaunchTypes holds one optional section per launch type.
type LaunchTypes struct {
	Local  *LocalConfig  `yaml:"local,omitempty"`
	Cloud  *CloudConfig  `yaml:"cloud,omitempty"`
	Hybrid *HybridConfig `yaml:"hybrid,omitempty"`
}

// ApplyDefaults fills zero-valued fields from their default tags. Sections
// that are missing are left nil, except the active one which is created.
func (p *ProjectConfig) ApplyDefaults() {
	defaults.SetDefaults(&p.Common)
	if p.Common.LaunchType != "" {
		if lt, err := ParseLaunchType(string(p.Common.LaunchType)); err == nil {
			p.Common.LaunchType = lt
			p.ensureSection(lt)
		}
	}
	if c := p.LaunchTypes.Local; c != nil {
		defaults.SetDefaults(c)
	}
	if c := p.LaunchTypes.Cloud; c != nil {
		defaults.SetDefaults(c)
		defaults.SetDefaults(&c.RuntimeSettings)
	}
	if c := p.LaunchTypes.Hybrid; c != nil {
		defaults.SetDefaults(c)
		defaults.SetDefaults(&c.RuntimeSettings)
	}
}

func (p *ProjectConfig) ensureSection(lt LaunchType) {
	switch lt {
	case LaunchTypeLocal:
		if p.LaunchTypes.Local == nil {
			p.LaunchTypes.Local = &LocalConfig{}
		}
	case LaunchTypeCloud:
		if p.LaunchTypes.Cloud == nil {
			p.LaunchTypes.Cloud = &CloudConfig{}
		}
	case LaunchTypeHybrid:
		if p.LaunchTypes.Hybrid == nil {
			p.LaunchTypes.Hybrid = &HybridConfig{}
		}
	}
}

// Active returns the section selected by common.launch_type.
func (p *ProjectConfig) Active() (StrategyConfig, error) {
	lt, err := ParseLaunchType(string(p.Common.LaunchType))
	if err != nil {
		return nil, err
	}
	p.ensureSection(lt)
	switch lt {
	case LaunchTypeLocal:
		return p.LaunchTypes.Local, nil
	case LaunchTypeCloud:
		return p.LaunchTypes.Cloud, nil
	default:
		return p.LaunchTypes.Hybrid, nil
	}
}

// Validate checks the common section and the active launch-type section.
func (p *ProjectConfig) Validate() error {
	if err := p.Common.Validate(); err != nil {
		return err
	}
	active, err := p.Active()
	if err != nil {
		return err
	}
	return active.Validate()
}

// =============================================================================
// Applying Updates
// =============================================================================

// ApplyUpdates writes updates into the active launch-type section.
//
// The section is round-tripped through YAML so values are decoded by the same
// rules as the config file (AutoString tokens, ints, maps). A key that is not
// a field of the section is rejected and nothing is changed.
func (p *ProjectConfig) ApplyUpdates(updates *Updates) error {
	if !updates.HasUpdates() {
		return nil
	}
	active, err := p.Active()
	if err != nil {
		return err
	}
	return applyToSection(active, updates)
}

func applyToSection(section StrategyConfig, updates *Updates) error {
	rv := reflect.ValueOf(section)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("config section must be a non-nil pointer, got %T", section)
	}

	known := yamlFieldNames(rv.Elem().Type())
	for _, key := range updates.Keys() {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("unknown %s config field %q", section.LaunchType(), key)
		}
	}

	raw, err := yaml.Marshal(section)
	if err != nil {
		return fmt.Errorf("marshal %s section: %w", section.LaunchType(), err)
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode %s section: %w", section.LaunchType(), err)
	}
	for key, value := range updates.Map() {
		fields[key] = value
	}
	merged, err := yaml.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal merged %s section: %w", section.LaunchType(), err)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := yaml.Unmarshal(merged, fresh.Interface()); err != nil {
		return fmt.Errorf("apply updates to %s section: %w", section.LaunchType(), err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// yamlFieldNames returns the YAML keys of a struct type, following inline
// embedded structs.
func yamlFieldNames(t reflect.Type) map[string]struct{} {
	names := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		name, opts, _ := strings.Cut(tag, ",")
		if strings.Contains(opts, "inline") && f.Type.Kind() == reflect.Struct {
			for k := range yamlFieldNames(f.Type) {
				names[k] = struct{}{}
			}
			continue
		}
		if name == "-" || !f.IsExported() {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		names[name] = struct{}{}
	}
	return names
}
