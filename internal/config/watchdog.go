package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// WatchdogConf is a loose bag of the `key=value` settings the watchdog
// sibling component reads from `snapwatchdog.conf` (spec §6.5). The
// content engine itself never writes this file; it only needs to read
// it to honor settings the watchdog and the engine share, such as the
// data directory root. The file is decoded with `BurntSushi/toml`, so
// every value must be a quoted TOML string (`key = "value"`); a bare
// unquoted `key=value` line, or a non-string value, fails to decode.
type WatchdogConf map[string]string

// ReadWatchdogConf decodes a snapwatchdog-style `.conf` file at path.
func ReadWatchdogConf(path string) (WatchdogConf, error) {
	var conf WatchdogConf
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("config: read watchdog conf %s: %w", path, err)
	}
	return conf, nil
}
