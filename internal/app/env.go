package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnvFiles loads dotenv files into the process environment before flags
// and config are resolved. Later files override earlier ones and missing files
// are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		vars, err := godotenv.Read(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load env %s: %w", p, err)
		}
		for k, v := range vars {
			if err := os.Setenv(k, v); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		log.Debug().Str("file", p).Int("vars", len(vars)).Msg("loaded env file")
	}
	return nil
}
