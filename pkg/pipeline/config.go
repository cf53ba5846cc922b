package pipeline

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mendel/pkg/errors"
)

// DefaultConfigName is the file looked up in the working directory when no
// configuration path is given.
const DefaultConfigName = "mendel.toml"

// LoadConfig decodes a TOML configuration file into Options. Unknown keys
// are rejected so typos do not silently fall back to defaults. Defaults are
// not applied; call ValidateAndSetDefaults afterwards.
func LoadConfig(path string) (Options, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Options{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open config")
	}
	defer f.Close()
	return DecodeConfig(f)
}

// DecodeConfig decodes TOML configuration from r.
func DecodeConfig(r io.Reader) (Options, error) {
	var opts Options
	md, err := toml.NewDecoder(r).Decode(&opts)
	if err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Options{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return opts, nil
}

// WriteConfig encodes opts as TOML.
func WriteConfig(w io.Writer, opts Options) error {
	return toml.NewEncoder(w).Encode(opts)
}
