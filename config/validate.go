package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Validate 检查取值范围和各配置项之间的依赖
func (c *Config) Validate() error {
	var errs []error

	if err := validateBind(c.Server.Bind); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}

	switch c.Isolation.Provider {
	case "gemini":
		if c.Isolation.Model == "" {
			errs = append(errs, errors.New("isolation.model is required for gemini"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("isolation.provider: unsupported value %q", c.Isolation.Provider))
	}
	if c.Isolation.Timeout <= 0 {
		errs = append(errs, errors.New("isolation.timeout must be positive"))
	}
	if c.Isolation.MaxInputSize < 0 {
		errs = append(errs, errors.New("isolation.max_input_size must not be negative"))
	}

	switch c.Keying.Detector {
	case "corner":
	case "border":
		if c.Keying.BorderWidth <= 0 {
			errs = append(errs, errors.New("keying.border_width must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("keying.detector: unsupported value %q", c.Keying.Detector))
	}
	for name, v := range map[string]int{
		"magenta_min_rb":     c.Keying.MagentaMinRB,
		"magenta_max_g":      c.Keying.MagentaMaxG,
		"hard_cut_min_rb":    c.Keying.HardCutMinRB,
		"hard_cut_max_g":     c.Keying.HardCutMaxG,
		"hard_cut_balance":   c.Keying.HardCutBalance,
		"despill_offset":     c.Keying.DespillOffset,
		"fallback_tolerance": c.Keying.FallbackTolerance,
	} {
		if v < 0 || v > 255 {
			errs = append(errs, fmt.Errorf("keying.%s must be within 0..255", name))
		}
	}

	switch c.Export.Sink {
	case "file":
		if strings.TrimSpace(c.Export.Dir) == "" {
			errs = append(errs, errors.New("export.dir is required for the file sink"))
		}
	case "azure":
		if c.Azure.ConnectionString == "" {
			errs = append(errs, errors.New("azure.connection_string is required for the azure sink"))
		}
		if c.Azure.Container == "" {
			errs = append(errs, errors.New("azure.container is required for the azure sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("export.sink: unsupported value %q", c.Export.Sink))
	}
	if c.Export.RetentionHours < 0 {
		errs = append(errs, errors.New("export.retention_hours must not be negative"))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateBind(bind string) error {
	_, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server.bind: port must be within 1..65535, got %q", port)
	}
	return nil
}
