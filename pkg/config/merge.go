package config

import "dario.cat/mergo"

// mergeOnto overlays user (parsed from the on-disk YAML, possibly with
// many zero-valued fields the operator never set) onto base (the
// built-in defaultConfig()), so an omitted field keeps its default
// rather than being zeroed out.
func mergeOnto(base Config, user Config) (Config, error) {
	if err := mergo.Merge(&base, user, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return base, nil
}
