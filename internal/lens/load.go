package lens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/edinburghfinds/lensfeed/internal/engine"
)

var structValidator = validator.New()

// Load reads a lens file by id from the first matching search root,
// unmarshals it, runs struct-level required-field checks, then runs the
// semantic gates. Any failure is a fatal configuration error - there is no
// partial or lazy validation.
func Load(lensID string, searchRoots []string, knownConnectors map[string]struct{}) (*Contract, string, error) {
	path, err := findLensFile(lensID, searchRoots)
	if err != nil {
		return nil, "", engine.Wrap(engine.ErrKindConfig, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", engine.Wrap(engine.ErrKindConfig, fmt.Errorf("reading lens file %s: %w", path, err))
	}

	var contract Contract
	if err := yaml.Unmarshal(data, &contract); err != nil {
		return nil, "", engine.Wrap(engine.ErrKindConfig, fmt.Errorf("parsing lens file %s: %w", path, err))
	}

	if err := structValidator.Struct(&contract); err != nil {
		return nil, "", engine.Wrap(engine.ErrKindConfig, fmt.Errorf("lens %s failed struct validation: %w", lensID, err))
	}

	if err := Validate(&contract, knownConnectors); err != nil {
		return nil, "", err
	}

	hash := sha256.Sum256(data)
	return &contract, hex.EncodeToString(hash[:])[:16], nil
}

func findLensFile(lensID string, searchRoots []string) (string, error) {
	for _, root := range searchRoots {
		candidate := filepath.Join(root, lensID+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		candidate = filepath.Join(root, lensID+".yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("lens %q not found in any search root: %v", lensID, searchRoots)
}

// ResolveLensID implements the lens resolution precedence: explicit CLI
// flag > LENS_ID environment variable > application config default_lens >
// optional dev-fallback flag. Returns the resolved id, whether the
// dev-fallback was used (so the caller can emit the required stderr
// warning), and an error if nothing resolved.
func ResolveLensID(cliFlag, envLensID, configDefault, devFallback string, allowDevFallback bool, logger arbor.ILogger) (string, bool, error) {
	if cliFlag != "" {
		return cliFlag, false, nil
	}
	if envLensID != "" {
		return envLensID, false, nil
	}
	if configDefault != "" {
		return configDefault, false, nil
	}
	if allowDevFallback && devFallback != "" {
		if logger != nil {
			logger.Warn().Str("lens", devFallback).Msg("no lens resolved via flag/env/config; using dev-fallback lens (not for production use)")
		}
		return devFallback, true, nil
	}
	return "", false, engine.Wrap(engine.ErrKindConfig, fmt.Errorf("no lens identifier resolved: pass --lens, set LENS_ID, set default_lens in config, or pass --allow-default-lens"))
}
