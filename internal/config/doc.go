// SPDX-License-Identifier: MPL-2.0

// Package config handles kpmd configuration using Viper with CUE as the file format.
//
// The config file is looked up at the path given with --config, then in the
// config directory ($XDG_CONFIG_HOME/kpmd/config.cue, falling back to
// /data/adb/kpmd on devices without a home directory), then as ./config.cue.
// Without a file the defaults apply. Every key can be overridden from the
// environment with the KPMD_ prefix, with dots replaced by underscores
// (KPMD_MODULE_DIR, KPMD_HELPER_PATH, ...).
//
// Files are validated against the CUE schema in config_schema.cue before
// being merged into Viper.
package config
