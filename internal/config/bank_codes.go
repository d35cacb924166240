package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type bankCodesFile struct {
	Banks []struct {
		Name    string   `yaml:"name"`
		Code    string   `yaml:"code"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"banks"`
}

// LoadBankCodes reads the operator-maintained bank name to gateway code table.
// Keys are normalised with NormalizeBankName.
func LoadBankCodes(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank codes file: %w", err)
	}

	var file bankCodesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bank codes file: %w", err)
	}

	codes := make(map[string]string, len(file.Banks))
	for _, b := range file.Banks {
		if b.Code == "" {
			return nil, fmt.Errorf("bank %q has no code", b.Name)
		}
		for _, name := range append([]string{b.Name}, b.Aliases...) {
			key := NormalizeBankName(name)
			if key == "" {
				continue
			}
			if prev, ok := codes[key]; ok && prev != b.Code {
				return nil, fmt.Errorf("bank name %q maps to both %s and %s", name, prev, b.Code)
			}
			codes[key] = b.Code
		}
	}
	return codes, nil
}

// NormalizeBankName lower-cases and trims a bank name for lookup.
func NormalizeBankName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
