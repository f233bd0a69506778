package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCodec()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCodec() {
	c.Codec.Binary = strings.TrimSpace(c.Codec.Binary)
	if c.Codec.Binary == "" {
		if value, ok := os.LookupEnv("HEIFCONV_CODEC"); ok {
			c.Codec.Binary = strings.TrimSpace(value)
		}
	}
	if c.Codec.Binary == "" {
		c.Codec.Binary = defaultCodecBinary
	}
	if c.Codec.Quality == 0 {
		c.Codec.Quality = defaultCodecQuality
	}
	if c.Codec.ProbeTimeout == 0 {
		c.Codec.ProbeTimeout = defaultCodecProbeTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxInFlight == 0 {
		c.Workflow.MaxInFlight = defaultWorkflowMaxInFlight
	}
	if c.Workflow.ItemTimeout == 0 {
		c.Workflow.ItemTimeout = defaultWorkflowItemTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
