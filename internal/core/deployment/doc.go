// Package deployment provides pure helpers for turning agentkit
// configuration into container engine and remote platform primitives.
//
// All functions are pure (no I/O, no side effects) except NewSuffix, which
// draws a random identifier.
//
// # Functions
//
//   - Naming: Generate resource names for Auto fields (RuntimeName, BucketName, ...)
//   - Ports: Parse "host:container/proto" mappings (ParsePortMappings, InvokeHostPort)
//   - Volumes: Parse "src:dst[:ro]" mounts (ParseVolumeMounts)
//   - Resources: Parse memory sizes (ParseMemory)
//   - Variables: Expand ${VAR} references in runtime envs (ExpandEnvs)
//
// # Usage
//
// Strategies and runners in internal/shell use these helpers to resolve
// configuration before talking to Docker or the platform API.
//
//	name := deployment.RuntimeName(agentName, deployment.NewSuffix())
//	ports, err := deployment.ParsePortMappings(cfg.Ports)
package deployment
