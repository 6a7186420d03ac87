// Package config defines the declarative project configuration for agentkit.
//
// This package is part of the functional core: it describes the shape of the
// agentkit.yaml file, the Auto sentinel, per-launch-type configuration
// variants and the ConfigUpdates accumulator. It performs no I/O; reading and
// writing the file is done by internal/shell/configfile.
//
// # File Layout
//
//	common:
//	  agent_name: weather-agent
//	  entry_point: main.py
//	  launch_type: local
//	launch_types:
//	  local:
//	    image_tag: v1
//	  cloud:
//	    runtime_id: Auto
//
// Only the section matching common.launch_type must be fully resolved.
package config
