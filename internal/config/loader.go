package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads and parses the TOML configuration file, injecting defaults and
// running semantic validation before returning.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8090)
	v.SetDefault("TargetPath", "/webdav")
	v.SetDefault("SegmentCacheCap", "500MiB")
	v.SetDefault("SegmentSize", "2MiB")
	v.SetDefault("MetadataTTL", "5m")
	v.SetDefault("RedirectTTL", "10m")
	v.SetDefault("PreloadTTL", "2m")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 8090
	}
	if g.TargetPath == "" {
		g.TargetPath = "/webdav"
	}
	if g.SegmentCacheCap.Bytes() == 0 {
		g.SegmentCacheCap = ByteSize(500 * 1024 * 1024)
	}
	if g.SegmentSize.Bytes() == 0 {
		g.SegmentSize = ByteSize(2 * 1024 * 1024)
	}
	if g.MetadataTTL.DurationValue() == 0 {
		g.MetadataTTL = Duration(5 * time.Minute)
	}
	if g.RedirectTTL.DurationValue() == 0 {
		g.RedirectTTL = Duration(10 * time.Minute)
	}
	if g.PreloadTTL.DurationValue() == 0 {
		g.PreloadTTL = Duration(2 * time.Minute)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported Duration type: %T", v)
		}
	}
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			var b ByteSize
			if err := b.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return b, nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(int64(v)), nil
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported ByteSize type: %T", v)
		}
	}
}
