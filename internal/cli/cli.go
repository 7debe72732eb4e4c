// Package cli provides the command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elevy30/ai-nebius-git-summarize/internal/bundle"
	"github.com/elevy30/ai-nebius-git-summarize/internal/cache"
	"github.com/elevy30/ai-nebius-git-summarize/internal/config"
	"github.com/elevy30/ai-nebius-git-summarize/internal/github"
	"github.com/elevy30/ai-nebius-git-summarize/internal/localrepo"
	"github.com/elevy30/ai-nebius-git-summarize/internal/rules"
	"github.com/elevy30/ai-nebius-git-summarize/internal/selection"
	"github.com/elevy30/ai-nebius-git-summarize/internal/service"
	"github.com/elevy30/ai-nebius-git-summarize/internal/summarizer"
	"github.com/elevy30/ai-nebius-git-summarize/internal/tokenizer"
	"github.com/elevy30/ai-nebius-git-summarize/internal/utils"
)

const (
	rootUse              = "gitsum"
	rootShortDescription = "summarize GitHub repositories"
	rootLongDescription  = `gitsum builds bounded context bundles from GitHub repositories or local
directories and turns them into structured summaries with an LLM.
Run serve to expose the summarizer over HTTP, summarize for a one-shot
summary, or bundle to inspect the assembled context without calling the LLM.`

	configFlagName        = "config"
	configFlagDescription = "path to a YAML settings file"
	rulesFlagName         = "rules"
	rulesFlagDescription  = "path to a YAML rules overlay"

	serveUse              = "serve"
	serveShortDescription = "run the summarization HTTP service"
	serveLongDescription  = `Start the HTTP service exposing POST /summarize and GET /health.
Host and port come from the settings file and environment; the --host and
--port flags override both.`
	hostFlagName        = "host"
	hostFlagDescription = "interface to bind"
	portFlagName        = "port"
	portFlagDescription = "port to listen on"

	summarizeUse              = "summarize <github-url>"
	summarizeShortDescription = "summarize a GitHub repository"
	summarizeUsageExample     = `  # Summarize a repository and print the JSON result
  gitsum summarize https://github.com/golang/go`

	bundleUse              = "bundle <github-url|path>"
	bundleShortDescription = "print the context bundle without calling the LLM"
	bundleLongDescription  = `Assemble the context bundle for a GitHub repository URL or a local
directory and print it. Useful for inspecting what the summarizer would
see, or for pasting into a chat session by hand.`
	bundleUsageExample = `  # Bundle a GitHub repository
  gitsum bundle https://github.com/golang/go

  # Bundle the current directory and copy it to the clipboard
  gitsum bundle . --copy-only

  # Append a token estimate for a specific model
  gitsum bundle . --tokens gpt-4o`
	copyFlagName            = "copy"
	copyFlagDescription     = "copy the bundle to the system clipboard"
	copyOnlyFlagName        = "copy-only"
	copyOnlyFlagDescription = "copy the bundle to the clipboard and suppress stdout"
	tokensFlagName          = "tokens"
	tokensFlagDescription   = "tokenizer model for the token estimate footer"

	localBundleOwner    = "local"
	urlSchemeHTTP       = "http://"
	urlSchemeHTTPS      = "https://"
	tokenFooterFormat   = "bundle: %s, ~%d tokens (%s)\n"
	encodeSummaryFormat = "encode summary: %w"
	clipboardCopyFormat = "copy bundle to clipboard: %w"
	absolutePathFormat  = "resolve path '%s': %w"
	openCacheFormat     = "open summary cache: %w"
)

// rootOptions carries the persistent flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	rulesPath  string
	logger     *zap.Logger
}

// pipeline bundles the configured collaborators a command needs.
type pipeline struct {
	settings  config.Settings
	ruleSet   rules.RuleSet
	client    github.Client
	assembler bundle.Assembler
	generator summarizer.Client
	logger    *zap.Logger
}

// Execute runs the gitsum application.
func Execute(loggerInstance *zap.Logger) error {
	rootCommand := createRootCommand(loggerInstance)
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand(loggerInstance *zap.Logger) *cobra.Command {
	if loggerInstance == nil {
		loggerInstance = zap.NewNop()
	}
	options := &rootOptions{logger: loggerInstance}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Version:      utils.GetApplicationVersion(),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	rootCommand.PersistentFlags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().StringVar(&options.rulesPath, rulesFlagName, "", rulesFlagDescription)
	rootCommand.AddCommand(
		createServeCommand(options),
		createSummarizeCommand(options),
		createBundleCommand(options),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// buildPipeline loads settings, applies the rules overlay, and constructs the
// GitHub client, assembler, and summarizer shared by the subcommands.
func (options *rootOptions) buildPipeline() (pipeline, error) {
	settings, loadErr := config.Load(config.LoadOptions{ExplicitFilePath: options.configPath})
	if loadErr != nil {
		return pipeline{}, loadErr
	}
	ruleSet, overlayErr := rules.ApplyOverlay(rules.DefaultRuleSet(), options.rulesPath)
	if overlayErr != nil {
		return pipeline{}, overlayErr
	}

	client := github.NewClient(nil, options.logger).
		WithAPIBase(settings.GitHubAPIBase).
		WithRawBase(settings.GitHubRawBase).
		WithTimeout(settings.GitHubTimeout).
		WithAuthorizationToken(settings.GitHubToken).
		WithMaxContentChars(settings.MaxContentChars).
		WithFetchConcurrency(settings.FetchConcurrency).
		WithRuleSet(ruleSet)
	assembler := bundle.NewAssembler().WithFileContentCap(settings.FileContentCap)
	generator := summarizer.NewClient(nil, options.logger).
		WithBaseURL(settings.OpenAIBaseURL).
		WithAPIKey(settings.OpenAIAPIKey).
		WithModel(settings.OpenAIModel).
		WithTimeout(settings.LLMTimeout)

	return pipeline{
		settings:  settings,
		ruleSet:   ruleSet,
		client:    client,
		assembler: assembler,
		generator: generator,
		logger:    options.logger,
	}, nil
}

// createServeCommand returns the serve subcommand.
func createServeCommand(options *rootOptions) *cobra.Command {
	var hostFlag string
	var portFlag int

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			built, buildErr := options.buildPipeline()
			if buildErr != nil {
				return buildErr
			}
			if command.Flags().Changed(hostFlagName) {
				built.settings.Host = hostFlag
			}
			if command.Flags().Changed(portFlagName) {
				built.settings.Port = portFlag
			}
			if validateErr := built.settings.Validate(); validateErr != nil {
				return validateErr
			}
			return runServe(command.Context(), built)
		},
	}
	serveCommand.Flags().StringVar(&hostFlag, hostFlagName, config.DefaultHost, hostFlagDescription)
	serveCommand.Flags().IntVar(&portFlag, portFlagName, config.DefaultPort, portFlagDescription)
	return serveCommand
}

// runServe wires the service together and blocks until interrupted.
func runServe(ctx context.Context, built pipeline) error {
	server := service.NewServer(
		service.Config{Host: built.settings.Host, Port: built.settings.Port},
		built.client,
		built.generator,
		built.logger,
	).WithAssembler(built.assembler)

	if built.settings.CachePath != "" {
		summaryCache, cacheErr := cache.Open(built.settings.CachePath, built.settings.CacheTTL)
		if cacheErr != nil {
			return fmt.Errorf(openCacheFormat, cacheErr)
		}
		defer summaryCache.Close()
		server = server.WithCache(summaryCache)
	}

	tokenCounter, tokenizerName, counterErr := tokenizer.NewCounter(built.settings.OpenAIModel)
	if counterErr != nil {
		built.logger.Warn("token estimates disabled", zap.Error(counterErr))
	} else {
		built.logger.Debug("token estimates enabled", zap.String("tokenizer", tokenizerName))
		server = server.WithTokenCounter(tokenCounter)
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(signalCtx, func(address string) {
		built.logger.Info("summarization service listening", zap.String("address", address))
	})
}

// createSummarizeCommand returns the summarize subcommand.
func createSummarizeCommand(options *rootOptions) *cobra.Command {
	summarizeCommand := &cobra.Command{
		Use:     summarizeUse,
		Short:   summarizeShortDescription,
		Example: summarizeUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runSummarize(command.Context(), options, arguments[0], command.OutOrStdout())
		},
	}
	return summarizeCommand
}

// runSummarize walks the full pipeline once and prints the summary as JSON.
func runSummarize(ctx context.Context, options *rootOptions, repositoryURL string, writer io.Writer) error {
	built, buildErr := options.buildPipeline()
	if buildErr != nil {
		return buildErr
	}
	owner, name, parseErr := github.ParseRepositoryURL(repositoryURL)
	if parseErr != nil {
		return parseErr
	}
	repository, fetchErr := built.client.FetchRepository(ctx, owner, name)
	if fetchErr != nil {
		return fetchErr
	}
	bundleText, assembleErr := built.assembler.Assemble(repository.Metadata, repository.DirectoryTree, repository.Contents)
	if assembleErr != nil {
		return assembleErr
	}
	summary, summarizeErr := built.generator.Summarize(ctx, bundleText)
	if summarizeErr != nil {
		return summarizeErr
	}
	encoded, encodeErr := json.MarshalIndent(summary, "", "  ")
	if encodeErr != nil {
		return fmt.Errorf(encodeSummaryFormat, encodeErr)
	}
	fmt.Fprintln(writer, string(encoded))
	return nil
}

// bundleOptions stores the flag values of the bundle subcommand.
type bundleOptions struct {
	copyToClipboard bool
	copyOnly        bool
	tokensModel     string
}

// createBundleCommand returns the bundle subcommand.
func createBundleCommand(options *rootOptions) *cobra.Command {
	var bundleConfiguration bundleOptions

	bundleCommand := &cobra.Command{
		Use:     bundleUse,
		Short:   bundleShortDescription,
		Long:    bundleLongDescription,
		Example: bundleUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runBundle(
				command.Context(),
				options,
				arguments[0],
				bundleConfiguration,
				command.OutOrStdout(),
				command.ErrOrStderr(),
				systemClipboard{},
			)
		},
	}
	bundleCommand.Flags().BoolVar(&bundleConfiguration.copyToClipboard, copyFlagName, false, copyFlagDescription)
	bundleCommand.Flags().BoolVar(&bundleConfiguration.copyOnly, copyOnlyFlagName, false, copyOnlyFlagDescription)
	bundleCommand.Flags().StringVar(&bundleConfiguration.tokensModel, tokensFlagName, "", tokensFlagDescription)
	return bundleCommand
}

// runBundle assembles the bundle for a GitHub URL or local directory and
// writes it to stdout, the clipboard, or both.
func runBundle(
	ctx context.Context,
	options *rootOptions,
	target string,
	bundleConfiguration bundleOptions,
	stdout io.Writer,
	stderr io.Writer,
	copier clipboardCopier,
) error {
	built, buildErr := options.buildPipeline()
	if buildErr != nil {
		return buildErr
	}

	bundleText, bundleErr := buildBundleText(ctx, built, target)
	if bundleErr != nil {
		return bundleErr
	}

	if bundleConfiguration.copyToClipboard || bundleConfiguration.copyOnly {
		if copyErr := copier.Copy(bundleText); copyErr != nil {
			return fmt.Errorf(clipboardCopyFormat, copyErr)
		}
	}
	if !bundleConfiguration.copyOnly {
		fmt.Fprintln(stdout, bundleText)
	}

	if bundleConfiguration.tokensModel != "" {
		counter, tokenizerName, counterErr := tokenizer.NewCounter(bundleConfiguration.tokensModel)
		if counterErr != nil {
			return counterErr
		}
		tokenCount, countErr := counter.CountString(bundleText)
		if countErr != nil {
			return countErr
		}
		fmt.Fprintf(stderr, tokenFooterFormat, utils.FormatFileSize(int64(len(bundleText))), tokenCount, tokenizerName)
	}
	return nil
}

// buildBundleText dispatches between the GitHub and local directory paths.
func buildBundleText(ctx context.Context, built pipeline, target string) (string, error) {
	if strings.HasPrefix(target, urlSchemeHTTP) || strings.HasPrefix(target, urlSchemeHTTPS) {
		owner, name, parseErr := github.ParseRepositoryURL(target)
		if parseErr != nil {
			return "", parseErr
		}
		repository, fetchErr := built.client.FetchRepository(ctx, owner, name)
		if fetchErr != nil {
			return "", fetchErr
		}
		return built.assembler.Assemble(repository.Metadata, repository.DirectoryTree, repository.Contents)
	}
	return buildLocalBundle(built, target)
}

// buildLocalBundle lists a local directory, selects files under the content
// budget, and assembles the bundle. Unreadable files are skipped with a
// warning, matching the non-fatal download policy of the GitHub path.
func buildLocalBundle(built pipeline, root string) (string, error) {
	absoluteRoot, absErr := filepath.Abs(root)
	if absErr != nil {
		return "", fmt.Errorf(absolutePathFormat, root, absErr)
	}

	entries, treePaths, listErr := localrepo.List(absoluteRoot, built.ruleSet)
	if listErr != nil {
		return "", listErr
	}

	directoryTree := selection.BuildTree(treePaths)
	contentBudget := selection.ContentBudget(built.settings.MaxContentChars, len(directoryTree))
	selectedEntries := selection.Select(entries, contentBudget, built.ruleSet)
	built.logger.Debug("selected local files",
		zap.String("root", absoluteRoot),
		zap.Int("listed", len(entries)),
		zap.Int("selected", len(selectedEntries)),
		zap.Int64("budget", contentBudget))

	fileContents := make([]bundle.FileContent, 0, len(selectedEntries))
	for _, entry := range selectedEntries {
		contentBytes, readErr := os.ReadFile(filepath.Join(absoluteRoot, filepath.FromSlash(entry.Path)))
		if readErr != nil {
			built.logger.Warn("skipping unreadable file",
				zap.String("path", entry.Path),
				zap.Error(readErr))
			continue
		}
		fileContents = append(fileContents, bundle.FileContent{Path: entry.Path, Content: string(contentBytes)})
	}

	metadata := bundle.Metadata{Owner: localBundleOwner, Name: filepath.Base(absoluteRoot)}
	return built.assembler.Assemble(metadata, directoryTree, fileContents)
}
