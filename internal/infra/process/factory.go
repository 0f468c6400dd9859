package process

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackbox/internal/infra/config"
)

// ExecSettings configures the exec launcher.
type ExecSettings struct {
	Env []string `yaml:"env" mapstructure:"env" validate:"dive,contains=="`
}

// ShellSettings configures the shell launcher.
type ShellSettings struct {
	Shell    string `yaml:"shell" mapstructure:"shell" default:"/bin/sh" validate:"required"`
	Pgrep    string `yaml:"pgrep" mapstructure:"pgrep" default:"pgrep" validate:"required"`
	SettleMs int    `yaml:"settle_ms" mapstructure:"settle_ms" default:"100" validate:"gte=0,lte=5000"`
}

// NewLauncherFromConfig creates the launcher selected by cfg.Launcher.Type.
func NewLauncherFromConfig(cfg config.PlayerConfig) (Launcher, error) {
	args := cfg.Args
	if len(args) == 0 {
		args = DefaultArgs
	}

	zlog.Debug().Msgf("process: creating launcher: type=%s settings=%+v", cfg.Launcher.Type, cfg.Launcher.Settings)

	switch cfg.Launcher.Type {
	case "exec", "":
		var s ExecSettings
		if err := decodeSettings(cfg.Launcher.Settings, &s); err != nil {
			return nil, errors.Wrap(err, "invalid exec launcher settings")
		}
		return NewExecLauncher(cfg.Binary, args, s.Env), nil

	case "shell":
		var s ShellSettings
		if err := decodeSettings(cfg.Launcher.Settings, &s); err != nil {
			return nil, errors.Wrap(err, "invalid shell launcher settings")
		}
		settle := time.Duration(s.SettleMs) * time.Millisecond
		return NewShellLauncher(s.Shell, cfg.Binary, args, settle, NewPgrepDiscoverer(s.Pgrep)), nil

	default:
		return nil, errors.Newf("unsupported launcher type: %s", cfg.Launcher.Type)
	}
}

// decodeSettings decodes, defaults and validates a launcher settings map.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
