// Package config is the on-disk configuration store: an ini file holding
// the cluster's replication thresholds and the partition endpoint list.
package config

import (
	"fmt"
	"os"

	"github.com/Unknwon/goconfig"
)

// ClusterSection is the ini section name holding replication thresholds.
const ClusterSection = "cluster"

// PartitionsSection is the ini section name whose keys are partition IDs
// and values are TCP dial endpoints (host:port) of the binary protocol.
const PartitionsSection = "partitions"

// Store wraps an ini-format file on disk.
type Store struct {
	path string
	cfg  *goconfig.ConfigFile
}

// Load reads path, creating an empty store in memory if it doesn't exist
// yet (it is created on the first Save).
func Load(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := goconfig.LoadFromData(nil)
		if err != nil {
			return nil, err
		}
		return &Store{path: path, cfg: cfg}, nil
	}
	cfg, err := goconfig.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &Store{path: path, cfg: cfg}, nil
}

// Save writes the store back to its path.
func (s *Store) Save() error {
	if err := goconfig.SaveConfigFile(s.cfg, s.path); err != nil {
		return fmt.Errorf("save config %s: %w", s.path, err)
	}
	return nil
}

// Get reads one key out of section.
func (s *Store) Get(section, key string) (string, bool) {
	v, err := s.cfg.GetValue(section, key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Set writes key=value into section, creating the section if needed.
func (s *Store) Set(section, key, value string) {
	_ = s.cfg.SetValue(section, key, value)
}

// Section returns every key/value pair in section, or an empty map if the
// section doesn't exist.
func (s *Store) Section(section string) map[string]string {
	m, err := s.cfg.GetSection(section)
	if err != nil {
		return map[string]string{}
	}
	return m
}
