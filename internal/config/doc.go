// Package config provides configuration structures and utilities for redfishscan.
// It defines crawl, transport and output settings, and loads the optional
// .redfishscan target file with per-service credentials and overrides.
package config
