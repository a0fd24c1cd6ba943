package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# reciter key (CDN path segment) or a name from the list below
reciter: "saad_alghamdi"
# audio quality in kbps
quality: "128"

# reciters shown by "nafaa reciters"
reciters:
  - key: "saad_alghamdi"
    name: "Saad Al-Ghamdi"
  - key: "ar.alafasy"
    name: "Mishary Rashid Alafasy"
  - key: "ar.husary"
    name: "Mahmoud Khalil Al-Husary"
  - key: "ar.minshawi"
    name: "Mohamed Siddiq Al-Minshawi"

# recitation audio CDN
cdn:
  root: "https://cdn.islamic.network/quran/audio"
  extension: "mp3"
  timeout: "60s"

catalog:
  # number of items
  size: 114
  # digits in file names (001.mp3)
  pad_width: 3

# offline storage
cache:
  # bolt, dir or memory
  backend: "bolt"
  # dir: "~/.local/share/nafaa/cache"
  # bytes, 0 for unlimited
  max_size: 0
  # zstd level, 0 disables compression
  compression_level: 3

# download-all
sync:
  # delay between two downloads
  pacing: "300ms"

playback:
  # wait for a key press before starting audio
  require_gesture: false
  # 44100 or 48000
  sample_rate: 44100
  # 0.0 to 1.0
  volume: 1.0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the nafaa config file",
	Long:    paragraph(fmt.Sprintf("\n%s the nafaa config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("nafaa config\nnafaa config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// Editing must work even when the current file does not validate
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("nafaa", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
