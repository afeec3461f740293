// Package cli provides the zip-files and zip-folder command line interfaces.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goerz/zip-files/internal/archive"
	"github.com/goerz/zip-files/internal/config"
	"github.com/goerz/zip-files/internal/exclude"
	"github.com/goerz/zip-files/internal/utils"
)

const (
	debugFlagName             = "debug"
	rootFolderFlagName        = "root-folder"
	rootFolderFlagShorthand   = "f"
	compressionFlagName       = "compression"
	compressionFlagShorthand  = "c"
	autoRootFlagName          = "auto-root"
	autoRootFlagShorthand     = "a"
	excludeFlagName           = "exclude"
	excludeFlagShorthand      = "x"
	excludeFromFlagName       = "exclude-from"
	excludeFromFlagShorthand  = "X"
	excludeDotfilesFlagName   = "exclude-dotfiles"
	includeDotfilesFlagName   = "include-dotfiles"
	excludeVCSFlagName        = "exclude-vcs"
	includeVCSFlagName        = "include-vcs"
	excludeGitIgnoresFlagName = "exclude-git-ignores"
	includeGitIgnoresFlagName = "include-git-ignores"
	outfileFlagName           = "outfile"
	outfileFlagShorthand      = "o"

	defaultCompressionName = "deflated"
	stdoutOutfilePath      = "--"

	filesUse              = "zip-files [OPTIONS] FILES..."
	filesShortDescription = "Create a zip file containing FILES"
	folderUse             = "zip-folder [OPTIONS] FOLDER"
	folderShortDescription = "Create a zip file containing the FOLDER"

	debugFlagDescription       = "activate debug logging"
	rootFolderFilesDescription = "folder name to prepend to FILES inside the zip file"
	rootFolderFolderDescription = "folder name to use as the top level folder inside the zip file (replacing FOLDER)"
	compressionFlagDescription = `zip compression method: "stored" (no compression), "deflated" (the standard zip compression method), "bzip2" (part of the zip standard since 2001), or "lzma" (part of the zip standard since 2006)`
	autoRootFlagDescription    = "use the stem of the OUTFILE (without path and extension) as the root folder; requires --outfile"
	excludeFlagDescription     = "glob pattern to exclude, matched from the right against all paths in the zip file; may be given multiple times"
	excludeFromFlagDescription = "file containing glob patterns to exclude, one per line; may be given multiple times"
	excludeDotfilesDescription = "exclude files whose name starts with a dot"
	includeDotfilesDescription = "include dotfiles (default)"
	excludeVCSDescription      = "exclude files and folders used internally by version control systems"
	includeVCSDescription      = "include version control files (default)"
	excludeGitIgnoresDescription = "exclude files listed in any .gitignore file found under the inputs"
	includeGitIgnoresDescription = "do not process .gitignore files (default)"
	outfileFlagDescription     = `path of the zip file to be written; by default, or when "--" is given, the archive is written to stdout`

	errorAutoRootRequiresOutfile    = "--auto-root requires --outfile"
	errorAutoRootConflictRootFolder = "--auto-root is incompatible with --root-folder"
	errorNotADirectoryFormat        = "'%s' is not a directory"
	errorAbsolutePathFormat         = "abs failed for '%s': %w"
	errorPathMissingFormat          = "path '%s' does not exist"
	errorStatFormat                 = "stat failed for '%s': %w"
	errorNoValidPaths               = "no valid paths"
	errorCreateOutfileFormat        = "creating output file %s: %w"
	errorCloseOutfileFormat         = "closing output file %s: %w"
)

// archiveOptions stores the flag values shared by both commands.
type archiveOptions struct {
	debugEnabled     bool
	rootFolder       string
	autoRootEnabled  bool
	compressionName  string
	excludePatterns  []string
	excludeListFiles []string
	outfilePath      string
	dotfileToggle    toggleFlagPair
	vcsToggle        toggleFlagPair
	gitignoreToggle  toggleFlagPair
}

func newArchiveOptions() *archiveOptions {
	return &archiveOptions{
		dotfileToggle:   toggleFlagPair{enableFlagName: excludeDotfilesFlagName, disableFlagName: includeDotfilesFlagName},
		vcsToggle:       toggleFlagPair{enableFlagName: excludeVCSFlagName, disableFlagName: includeVCSFlagName},
		gitignoreToggle: toggleFlagPair{enableFlagName: excludeGitIgnoresFlagName, disableFlagName: includeGitIgnoresFlagName},
	}
}

// ExecuteFiles runs the zip-files command.
func ExecuteFiles() error {
	return NewFilesCommand().Execute()
}

// ExecuteFolder runs the zip-folder command.
func ExecuteFolder() error {
	return NewFolderCommand().Execute()
}

// NewFilesCommand builds the zip-files Cobra command, which archives an
// explicit list of files and directories.
func NewFilesCommand() *cobra.Command {
	options := newArchiveOptions()
	filesCommand := &cobra.Command{
		Use:          filesUse,
		Short:        filesShortDescription,
		Version:      utils.GetApplicationVersion(),
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runArchive(command, options, arguments, false)
		},
	}
	registerArchiveFlags(filesCommand, options, rootFolderFilesDescription)
	return filesCommand
}

// NewFolderCommand builds the zip-folder Cobra command, which archives the
// contents of a single directory under a top-level folder name.
func NewFolderCommand() *cobra.Command {
	options := newArchiveOptions()
	folderCommand := &cobra.Command{
		Use:          folderUse,
		Short:        folderShortDescription,
		Version:      utils.GetApplicationVersion(),
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runArchive(command, options, arguments, true)
		},
	}
	registerArchiveFlags(folderCommand, options, rootFolderFolderDescription)
	return folderCommand
}

// registerArchiveFlags adds the shared flag set to a command.
func registerArchiveFlags(command *cobra.Command, options *archiveOptions, rootFolderDescription string) {
	flagSet := command.Flags()
	flagSet.BoolVar(&options.debugEnabled, debugFlagName, false, debugFlagDescription)
	flagSet.StringVarP(&options.rootFolder, rootFolderFlagName, rootFolderFlagShorthand, "", rootFolderDescription)
	flagSet.StringVarP(&options.compressionName, compressionFlagName, compressionFlagShorthand, defaultCompressionName, compressionFlagDescription)
	flagSet.BoolVarP(&options.autoRootEnabled, autoRootFlagName, autoRootFlagShorthand, false, autoRootFlagDescription)
	flagSet.StringArrayVarP(&options.excludePatterns, excludeFlagName, excludeFlagShorthand, nil, excludeFlagDescription)
	flagSet.StringArrayVarP(&options.excludeListFiles, excludeFromFlagName, excludeFromFlagShorthand, nil, excludeFromFlagDescription)
	options.dotfileToggle.register(flagSet, excludeDotfilesDescription, includeDotfilesDescription)
	options.vcsToggle.register(flagSet, excludeVCSDescription, includeVCSDescription)
	options.gitignoreToggle.register(flagSet, excludeGitIgnoresDescription, includeGitIgnoresDescription)
	flagSet.StringVarP(&options.outfilePath, outfileFlagName, outfileFlagShorthand, "", outfileFlagDescription)
}

// runArchive validates options, assembles the exclusion list, and builds the
// archive. All configuration errors surface before the output destination is
// created or any traversal begins.
func runArchive(command *cobra.Command, options *archiveOptions, inputArguments []string, folderMode bool) error {
	logger, loggerError := utils.NewApplicationLogger(options.debugEnabled)
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	defer logger.Sync()

	if options.autoRootEnabled {
		if command.Flags().Changed(rootFolderFlagName) {
			return errors.New(errorAutoRootConflictRootFolder)
		}
		if options.outfilePath == "" {
			return errors.New(errorAutoRootRequiresOutfile)
		}
	}

	excludeDotfiles, dotfilesChanged, dotfilesError := options.dotfileToggle.resolve(command.Flags())
	if dotfilesError != nil {
		return dotfilesError
	}
	excludeVCS, vcsChanged, vcsError := options.vcsToggle.resolve(command.Flags())
	if vcsError != nil {
		return vcsError
	}
	excludeGitIgnores, gitIgnoresChanged, gitIgnoresError := options.gitignoreToggle.resolve(command.Flags())
	if gitIgnoresError != nil {
		return gitIgnoresError
	}

	appConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{})
	if configurationError != nil {
		return configurationError
	}
	if !dotfilesChanged && appConfiguration.ExcludeDotfiles != nil {
		excludeDotfiles = *appConfiguration.ExcludeDotfiles
	}
	if !vcsChanged && appConfiguration.ExcludeVCS != nil {
		excludeVCS = *appConfiguration.ExcludeVCS
	}
	if !gitIgnoresChanged && appConfiguration.ExcludeGitIgnores != nil {
		excludeGitIgnores = *appConfiguration.ExcludeGitIgnores
	}
	compressionName := options.compressionName
	if !command.Flags().Changed(compressionFlagName) && appConfiguration.Compression != "" {
		compressionName = appConfiguration.Compression
	}
	compressionMethod, methodError := archive.ParseMethod(compressionName)
	if methodError != nil {
		return methodError
	}

	explicitPatterns := append(append([]string(nil), appConfiguration.Exclude...), options.excludePatterns...)
	excludeListFiles := append(append([]string(nil), appConfiguration.ExcludeFrom...), options.excludeListFiles...)

	resolvedRootFolder := options.rootFolder
	var inputPaths []string
	if folderMode {
		folderPath, folderEntries, folderError := resolveFolder(inputArguments[0])
		if folderError != nil {
			return folderError
		}
		if resolvedRootFolder == "" {
			resolvedRootFolder = filepath.Base(folderPath)
		}
		inputPaths = folderEntries
	} else {
		validatedPaths, pathValidationError := resolveAndValidatePaths(inputArguments)
		if pathValidationError != nil {
			return pathValidationError
		}
		inputPaths = validatedPaths
	}
	if options.autoRootEnabled {
		resolvedRootFolder = outfileStem(options.outfilePath)
	}

	patternList, excludeError := exclude.BuildExcludes(exclude.Options{
		ExplicitPatterns:  explicitPatterns,
		ListFiles:         excludeListFiles,
		IncludeVCS:        excludeVCS,
		IncludeGitignores: excludeGitIgnores,
		CandidateRoots:    inputPaths,
		RootFolder:        resolvedRootFolder,
		Logger:            logger,
	})
	if excludeError != nil {
		return excludeError
	}

	var outputWriter io.Writer = os.Stdout
	var outputFile *os.File
	if options.outfilePath != "" && options.outfilePath != stdoutOutfilePath {
		createdFile, createError := os.Create(options.outfilePath)
		if createError != nil {
			return fmt.Errorf(errorCreateOutfileFormat, options.outfilePath, createError)
		}
		outputFile = createdFile
		outputWriter = createdFile
	}

	builder := archive.NewBuilder(logger, archive.BuildOptions{
		RootFolder:      resolvedRootFolder,
		Method:          compressionMethod,
		Patterns:        patternList,
		ExcludeDotfiles: excludeDotfiles,
	})
	buildError := builder.Build(outputWriter, inputPaths)
	if outputFile != nil {
		if closeError := outputFile.Close(); closeError != nil && buildError == nil {
			buildError = fmt.Errorf(errorCloseOutfileFormat, options.outfilePath, closeError)
		}
	}
	return buildError
}

// resolveFolder validates the folder argument and returns its cleaned
// absolute path together with the paths of its immediate entries, which
// become the archive inputs.
func resolveFolder(folderArgument string) (string, []string, error) {
	absolutePath, absolutePathError := filepath.Abs(folderArgument)
	if absolutePathError != nil {
		return "", nil, fmt.Errorf(errorAbsolutePathFormat, folderArgument, absolutePathError)
	}
	cleanPath := filepath.Clean(absolutePath)
	folderInfo, folderStatError := os.Stat(cleanPath)
	if folderStatError != nil {
		if os.IsNotExist(folderStatError) {
			return "", nil, fmt.Errorf(errorPathMissingFormat, folderArgument)
		}
		return "", nil, fmt.Errorf(errorStatFormat, folderArgument, folderStatError)
	}
	if !folderInfo.IsDir() {
		return "", nil, fmt.Errorf(errorNotADirectoryFormat, folderArgument)
	}
	folderEntries, listError := os.ReadDir(cleanPath)
	if listError != nil {
		return "", nil, fmt.Errorf(errorStatFormat, folderArgument, listError)
	}
	entryPaths := make([]string, 0, len(folderEntries))
	for _, folderEntry := range folderEntries {
		entryPaths = append(entryPaths, filepath.Join(cleanPath, folderEntry.Name()))
	}
	return cleanPath, entryPaths, nil
}

// resolveAndValidatePaths converts input paths to absolute form and validates their existence.
func resolveAndValidatePaths(inputs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string
	for _, inputPath := range inputs {
		absolutePath, absolutePathError := filepath.Abs(inputPath)
		if absolutePathError != nil {
			return nil, fmt.Errorf(errorAbsolutePathFormat, inputPath, absolutePathError)
		}
		cleanPath := filepath.Clean(absolutePath)
		if _, alreadySeen := seen[cleanPath]; alreadySeen {
			continue
		}
		if _, fileStatusError := os.Stat(cleanPath); fileStatusError != nil {
			if os.IsNotExist(fileStatusError) {
				return nil, fmt.Errorf(errorPathMissingFormat, inputPath)
			}
			return nil, fmt.Errorf(errorStatFormat, inputPath, fileStatusError)
		}
		seen[cleanPath] = struct{}{}
		result = append(result, cleanPath)
	}
	if len(result) == 0 {
		return nil, errors.New(errorNoValidPaths)
	}
	return result, nil
}

// outfileStem returns the base name of the output path without its extension.
func outfileStem(outfilePath string) string {
	baseName := filepath.Base(outfilePath)
	return strings.TrimSuffix(baseName, filepath.Ext(baseName))
}
