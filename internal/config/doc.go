// Package config provides configuration management for panelsync.
//
// Configuration is a single YAML file. The file is taken from the --config
// flag, or from ~/.config/panelsync/config.yaml; when neither exists the
// built-in defaults are used.
//
// # File Format
//
//	scheduler:
//	  frameInterval: 16ms
//	  defaultInterval: 100ms
//	  failurePolicy:
//	    mode: fail-open        # or "retry"
//	    maxRetries: 3
//	    initialBackoff: 250ms
//	    maxBackoff: 5s
//	targets:
//	  - name: inventory
//	    interval: 50ms
//	    properties: [items, gold, weight, equipped]
//	bindings:
//	  - event: inventory:item:added
//	    marks:
//	      - target: inventory
//	        properties: [items, weight]
//
// The file is decoded on top of GetDefaultConfig: omitted scheduler fields
// keep their defaults, while a targets or bindings list replaces the default
// list entirely.
//
// # Validation
//
// Validate reports every problem at once in a ConfigurationErrorCollection:
// duplicate targets or properties, bindings that name unknown targets or
// properties, non-positive intervals and unknown failure modes.
//
// # Hot Reload
//
// Watcher uses fsnotify to re-read the file when it changes. Plan compares
// the reloaded configuration with the running one; throttle intervals can be
// applied live, anything else is reported as requiring a restart.
package config
