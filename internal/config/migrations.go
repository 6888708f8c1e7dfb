package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"tools.zach/dev/jellycord/internal/migrate"
)

func init() {
	migrate.Config.Register(migrate.Migration{
		Version:     2,
		Description: "poll interval in seconds",
		Upgrade:     pollIntervalSeconds,
	})
}

// pollIntervalSeconds replaces behavior.update_interval_ms with
// behavior.poll_interval_seconds, rounding up to whole seconds.
func pollIntervalSeconds(data []byte) ([]byte, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse v1 config: %w", err)
	}

	if behavior, ok := doc["behavior"].(map[string]any); ok {
		if ms, ok := behavior["update_interval_ms"].(int64); ok {
			delete(behavior, "update_interval_ms")
			if ms > 0 {
				behavior["poll_interval_seconds"] = int64(msToSeconds(int(ms)))
			}
		}
	}
	doc["version"] = int64(2)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
