// Package config handles fleetd configuration loading from YAML files with
// FLEET_* environment overrides, default federation timings, and startup
// validation of the options the coordinator cannot run without.
package config
