// Copyright 2024-2026 Aiku AI

package config

import (
	"fmt"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"
)

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "network")
	helper.Copy(up.Str, "prefix")
	helper.Copy(up.Str, "parse_mode")
	helper.Copy(up.Bool, "register_base_modules")
	helper.Copy(up.Str, "session_file")

	helper.Copy(up.Str, "mattermost", "server_url")
	helper.Copy(up.Str, "mattermost", "login")
	helper.Copy(up.Int, "mattermost", "per_page")

	helper.Copy(up.Str, "matrix", "homeserver_url")
	helper.Copy(up.Str, "matrix", "username")
	helper.Copy(up.Str, "matrix", "device_name")
	helper.Copy(up.Int, "matrix", "page_size")

	helper.Copy(up.Map, "logging")
}

// Upgrade copies the known keys of data onto [ExampleConfig] and returns
// the result. Keys missing from data keep their example values; unknown keys
// are dropped. Empty data yields the example.
func Upgrade(data []byte) ([]byte, error) {
	var base yaml.Node
	if err := yaml.Unmarshal([]byte(ExampleConfig), &base); err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	if len(data) == 0 {
		return []byte(ExampleConfig), nil
	}
	var cfg yaml.Node
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Content) == 0 {
		return []byte(ExampleConfig), nil
	}
	upgradeConfig(up.NewHelper(&base, &cfg))
	out, err := yaml.Marshal(&base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upgraded config: %w", err)
	}
	return out, nil
}
