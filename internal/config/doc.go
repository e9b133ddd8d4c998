// Package config loads, validates and hot-reloads the pickupwatch config file.
//
// Both JSON and YAML are accepted; YAML is converted to JSON first so a single
// strict decoder (unknown fields rejected) serves both formats.
//
// Hot reload publishes only validated configs. Of the published sections only
// logging and active_hours are applied live; other changes are logged and take
// effect on the next restart.
package config
