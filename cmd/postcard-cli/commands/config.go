package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"postcard-creator/lib/configutil"
	"postcard-creator/lib/postcard"
	"postcard-creator/lib/telemetry"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Username string `json:"username" env:"POSTCARD_USERNAME"`
	Password string `json:"password" env:"POSTCARD_PASSWORD"`

	Picture   string             `json:"picture" env:"POSTCARD_PICTURE"`
	Message   string             `json:"message" env:"POSTCARD_MESSAGE"`
	Sender    postcard.Sender    `json:"sender"`
	Recipient postcard.Recipient `json:"recipient"`

	CloudflareBypass bool             `json:"cloudflare_bypass"`
	Telemetry        telemetry.Config `json:"telemetry"`
}

// loadConfig reads the json5 config at `path` (a missing file is not an
// error) and applies the environment overrides on top of it. When `search`
// is set, parent directories are searched for `path` as well.
func loadConfig(path string, search bool) (Config, error) {
	read := configutil.ReadConfig[Config]
	if search {
		read = configutil.ReadRecursively[Config]
	}
	cfg, err := read(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using environment only", "path", path)
		err = nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	err = env.Parse(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

func (c Config) Postcard() postcard.Postcard {
	return postcard.Postcard{
		ImageLocation: c.Picture,
		Sender:        c.Sender,
		Recipient:     c.Recipient,
		Message:       c.Message,
	}
}
