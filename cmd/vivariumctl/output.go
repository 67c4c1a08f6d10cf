package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"vivariumcore/internal/export"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

func (a *app) print(v any) error {
	switch a.output {
	case "", outputYAML:
		data, err := export.EncodeYAML(v)
		if err != nil {
			return err
		}
		_, err = a.stdout.Write(data)
		return err
	case outputJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}

// readManifest reads a YAML or JSON document from path ("-" is stdin) and decodes it into
// dest using dest's JSON field names. Fields absent from the document keep their value.
func (a *app) readManifest(path string, dest any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}
	return nil
}

// printConfig renders the configuration with its own YAML keys.
func (a *app) printConfig(cfg any) error {
	if a.output == outputJSON {
		return a.print(cfg)
	}
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
