package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env.local and .env from the working directory and every
// parent up to the filesystem root, so the binary can run from any subdir of
// a checkout. Only vars that are not already set are applied, matching
// godotenv's behavior.
func LoadDotEnv() {
	if isDotEnvDisabled() {
		return
	}

	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		for d := cwd; ; {
			paths = append(paths, filepath.Join(d, ".env.local"), filepath.Join(d, ".env"))
			parent := filepath.Dir(d)
			if parent == d {
				break
			}
			d = parent
		}
	} else {
		paths = []string{".env.local", ".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Fatalf("%s failed to load %s: %v", logPrefix, p, err)
		}
		log.Printf("%s loaded env from %s", logPrefix, p)
	}
}

func isDotEnvDisabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("HOURLYSIGNAL_DOTENV"))) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
