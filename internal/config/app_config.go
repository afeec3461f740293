// Package config loads optional application defaults from configuration
// files. Values merge global-then-local, and command-line flags always win
// over anything loaded here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigFileName is the defaults file looked up in the home and working
// directories.
const ConfigFileName = ".zip-files.yaml"

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds per-invocation defaults. Pointer fields
// distinguish "not configured" from an explicit false.
type ApplicationConfiguration struct {
	Compression       string   `mapstructure:"compression"`
	Exclude           []string `mapstructure:"exclude"`
	ExcludeFrom       []string `mapstructure:"exclude_from"`
	ExcludeDotfiles   *bool    `mapstructure:"exclude_dotfiles"`
	ExcludeVCS        *bool    `mapstructure:"exclude_vcs"`
	ExcludeGitIgnores *bool    `mapstructure:"exclude_git_ignores"`
}

// LoadApplicationConfiguration loads configuration from the global file in
// the user's home directory and the local file in the working directory,
// merging local over global. Missing files are not an error; unreadable or
// malformed files are.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalConfiguration, loadError := loadConfigurationFromPath(filepath.Join(homeDirectory, ConfigFileName))
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfiguration)
	}

	localPath := options.ExplicitFilePath
	if localPath == "" {
		localPath = filepath.Join(workingDirectory, ConfigFileName)
	} else if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(workingDirectory, localPath)
	}
	localConfiguration, loadError := loadConfigurationFromPath(localPath)
	if loadError != nil {
		return ApplicationConfiguration{}, loadError
	}
	merged = merged.Merge(localConfiguration)

	return merged, nil
}

func loadConfigurationFromPath(configurationPath string) (ApplicationConfiguration, error) {
	pathInfo, statError := os.Stat(configurationPath)
	if statError != nil {
		if os.IsNotExist(statError) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", configurationPath, statError)
	}
	if pathInfo.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", configurationPath)
	}

	reader := viper.New()
	reader.SetConfigFile(configurationPath)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", configurationPath, readError)
	}
	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", configurationPath, decodeError)
	}
	return configuration, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (configuration ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := configuration
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string(nil), override.Exclude...)
	}
	if len(override.ExcludeFrom) > 0 {
		result.ExcludeFrom = append([]string(nil), override.ExcludeFrom...)
	}
	if override.ExcludeDotfiles != nil {
		result.ExcludeDotfiles = cloneBool(override.ExcludeDotfiles)
	}
	if override.ExcludeVCS != nil {
		result.ExcludeVCS = cloneBool(override.ExcludeVCS)
	}
	if override.ExcludeGitIgnores != nil {
		result.ExcludeGitIgnores = cloneBool(override.ExcludeGitIgnores)
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
