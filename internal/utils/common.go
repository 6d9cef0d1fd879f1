package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kairos-io/diskplan/internal/constants"
)

// Config holds the settings that are not part of the template.
type Config struct {
	Template  string
	MountRoot string
	Output    string
	Fstab     bool
	Debug     bool
}

// ReadEnv parses an env file, KEY="value" per line.
func ReadEnv(file string) (map[string]string, error) {
	return godotenv.Read(file)
}

// LoadConfig reads the env file, if there is one, and lets DISKPLAN_* variables
// from the environment override it. A missing file is only an error when
// required is set.
func LoadConfig(file string, required bool) (Config, error) {
	cfg := Config{MountRoot: constants.DefaultMountRoot}
	values := map[string]string{}

	if file != "" {
		env, err := ReadEnv(file)
		switch {
		case err == nil:
			values = env
		case errors.Is(err, fs.ErrNotExist) && !required:
			Log.Debug().Str("what", file).Msg("No config file, using defaults")
		default:
			return cfg, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	for _, k := range []string{"TEMPLATE", "MOUNT_ROOT", "OUTPUT", "FSTAB", "DEBUG"} {
		if v, ok := os.LookupEnv(constants.EnvPrefix + k); ok {
			values[constants.EnvPrefix+k] = v
		}
	}

	if v := values[constants.EnvPrefix+"TEMPLATE"]; v != "" {
		cfg.Template = v
	}
	if v := values[constants.EnvPrefix+"MOUNT_ROOT"]; v != "" {
		cfg.MountRoot = v
	}
	if v := values[constants.EnvPrefix+"OUTPUT"]; v != "" {
		cfg.Output = v
	}
	var err error
	if cfg.Fstab, err = parseBool(values, "FSTAB"); err != nil {
		return cfg, err
	}
	if cfg.Debug, err = parseBool(values, "DEBUG"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseBool(values map[string]string, key string) (bool, error) {
	v, ok := values[constants.EnvPrefix+key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s%s: %w", constants.EnvPrefix, key, err)
	}
	return b, nil
}
