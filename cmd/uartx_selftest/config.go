package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"gopkg.in/yaml.v3"
)

// yamlLoader resolves flags from YAML the way kong.JSON and the TOML loader
// do: a key nested under the command path wins, and a top-level key named
// after the flag is the fallback.
func yamlLoader(r io.Reader) (kong.Resolver, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	nested, err := kongyaml.Loader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	flat := map[string]any{}
	if err := yaml.Unmarshal(raw, &flat); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML config decode error: %w", err)
	}
	return kong.ResolverFunc(func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		v, err := nested.Resolve(ctx, parent, flag)
		if err != nil || v != nil {
			return v, err
		}
		if v, ok := flat[flag.Name]; ok {
			if _, section := v.(map[string]any); !section {
				return v, nil
			}
		}
		return nil, nil
	}), nil
}

// configDir returns the per-user configuration directory.
func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "uartx")
	}
	return ""
}

// configCandidatePaths builds candidate paths for config files per format.
// A user path comes first and is routed to the loader matching its extension.
func configCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(slice *[]string, p string) { *slice = append(*slice, p) }

	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".yaml", ".yml":
			add(&yamlPaths, userPath)
		case ".toml":
			add(&tomlPaths, userPath)
		default:
			add(&jsonPaths, userPath)
		}
	}

	dirs := []string{}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if dir := configDir(); dir != "" {
		dirs = append(dirs, dir)
	}
	if runtime.GOOS != "windows" {
		dirs = append(dirs, "/etc/uartx")
	}
	for _, dir := range dirs {
		base := filepath.Join(dir, "uartx")
		add(&jsonPaths, base+".json")
		add(&yamlPaths, base+".yaml")
		add(&yamlPaths, base+".yml")
		add(&tomlPaths, base+".toml")
	}
	return
}
