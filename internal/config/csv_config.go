package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescale/dlxt/internal/logging"
)

var csvHeader = []string{"key", "value"}

// LoadConfigCSV loads a key,value CSV file on top of the defaults. A missing
// file yields the defaults.
func LoadConfigCSV(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := cfg.mergeCSV(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeCSV(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read config CSV: %w", err)
		}
		if len(record) < 2 || (line == 1 && strings.EqualFold(record[0], csvHeader[0])) {
			continue
		}

		key, value := record[0], strings.TrimSpace(record[1])
		s, ok := lookupSetting(key)
		if !ok {
			return fmt.Errorf("%s:%d: unknown key %q", path, line, key)
		}
		if s.envOnly {
			if value != "" {
				logging.NewDefaultCLILogger().Warn().Str("key", s.key).Msg("Ignoring secret in config file, use the environment or a flag")
			}
			continue
		}
		if err := s.set(c, value); err != nil {
			return fmt.Errorf("%s:%d: invalid %s value %q: %w", path, line, s.key, value, err)
		}
	}
}

// SaveConfigCSV writes the non-zero settings of cfg as key,value rows.
// Environment-only settings are never written.
func SaveConfigCSV(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	w := csv.NewWriter(file)
	_ = w.Write(csvHeader)
	for _, s := range settings {
		if s.envOnly {
			continue
		}
		switch v := s.get(cfg); v {
		case "", "0", "false":
		default:
			_ = w.Write([]string{s.key, v})
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return file.Close()
}
