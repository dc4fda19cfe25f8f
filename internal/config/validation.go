package config

import (
	"errors"
	"net/url"
)

// Validate performs semantic checks beyond what Viper's decode already enforces,
// so a malformed config fails fast at startup rather than mid-request.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "must be in 1-65535")
	}
	if g.TargetHost == "" {
		return newFieldError("Global.TargetHost", "must not be empty")
	}
	if err := validateOrigin(g.TargetHost); err != nil {
		return newFieldError("Global.TargetHost", err.Error())
	}
	if g.SegmentCacheCap.Bytes() <= 0 {
		return newFieldError("Global.SegmentCacheCap", "must be greater than 0")
	}
	if g.SegmentSize.Bytes() <= 0 {
		return newFieldError("Global.SegmentSize", "must be greater than 0")
	}
	if g.SegmentSize.Bytes() > g.SegmentCacheCap.Bytes() {
		return newFieldError("Global.SegmentSize", "must not exceed SegmentCacheCap")
	}
	if g.MetadataTTL.DurationValue() <= 0 {
		return newFieldError("Global.MetadataTTL", "must be greater than 0")
	}
	if g.RedirectTTL.DurationValue() <= 0 {
		return newFieldError("Global.RedirectTTL", "must be greater than 0")
	}
	if g.PreloadTTL.DurationValue() <= 0 {
		return newFieldError("Global.PreloadTTL", "must be greater than 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "must be greater than 0")
	}
	if (g.TargetUsername == "") != (g.TargetPassword == "") {
		return newFieldError("Global.TargetUsername/TargetPassword", "must both be set or both be empty")
	}

	return nil
}

func validateOrigin(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
