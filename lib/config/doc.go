// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration of the Scenic relay.
//
// Configuration comes from a single file named by either the
// SCENIC_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path.
//
// The file may contain environment-specific sections (development,
// staging, production) whose non-zero fields override the base values
// when [Config].Environment matches.
//
// Path fields support ${HOME}, ${SCENIC_ROOT}, and ${VAR:-default}
// expansion. No other environment variables override config values.
//
// This package depends on no other Scenic packages.
package config
