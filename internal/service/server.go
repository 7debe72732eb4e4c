// Package service exposes the summarization pipeline over HTTP: a summarize
// endpoint that walks URL parsing, the GitHub fetch, bundle assembly, and the
// LLM call, plus a health probe.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elevy30/ai-nebius-git-summarize/internal/bundle"
	"github.com/elevy30/ai-nebius-git-summarize/internal/cache"
	"github.com/elevy30/ai-nebius-git-summarize/internal/github"
	"github.com/elevy30/ai-nebius-git-summarize/internal/summarizer"
	"github.com/elevy30/ai-nebius-git-summarize/internal/tokenizer"
	"github.com/elevy30/ai-nebius-git-summarize/internal/utils"
)

const (
	defaultHostName          = "0.0.0.0"
	defaultShutdownDuration  = 5 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	headerContentType        = "Content-Type"
	mimeTypeJSON             = "application/json"
	summarizePath            = "/summarize"
	healthPath               = "/health"
	statusErrorValue         = "error"
	statusHealthyValue       = "ok"
)

const (
	methodNotAllowedMessage   = "Method not allowed"
	invalidRequestBodyMessage = "Invalid request body. Expected JSON with a github_url field."
	emptyRepositoryMessage    = "Repository appears empty or has no analyzable files"
	unexpectedErrorFormat     = "Unexpected error: %s"
)

// RepositoryFetcher retrieves everything the bundle needs about a repository.
type RepositoryFetcher interface {
	FetchRepository(ctx context.Context, owner string, name string) (github.Repository, error)
}

// SummaryGenerator turns an assembled bundle into a structured summary.
type SummaryGenerator interface {
	Summarize(ctx context.Context, prompt string) (summarizer.Summary, error)
}

// SummaryCache stores summaries between requests. A nil cache disables
// caching entirely.
type SummaryCache interface {
	Lookup(owner string, repo string) (cache.Entry, bool, error)
	Store(owner string, repo string, summary summarizer.Summary) error
}

// Config defines runtime options for the HTTP service.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type summarizeRequest struct {
	GitHubURL string `json:"github_url"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Server wires the fetcher, assembler, generator, and optional cache and
// token counter behind the HTTP endpoints.
type Server struct {
	config       Config
	fetcher      RepositoryFetcher
	assembler    bundle.Assembler
	generator    SummaryGenerator
	summaryCache SummaryCache
	tokenCounter tokenizer.Counter
	logger       *zap.Logger
}

// NewServer creates a Server with defaults applied. A nil logger is replaced
// with a no-op logger; the cache and token counter stay disabled until set.
func NewServer(config Config, fetcher RepositoryFetcher, generator SummaryGenerator, logger *zap.Logger) Server {
	normalized := config
	if normalized.Host == "" {
		normalized.Host = defaultHostName
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Server{
		config:    normalized,
		fetcher:   fetcher,
		assembler: bundle.NewAssembler(),
		generator: generator,
		logger:    logger,
	}
}

// WithAssembler replaces the bundle assembler.
func (server Server) WithAssembler(assembler bundle.Assembler) Server {
	server.assembler = assembler
	return server
}

// WithCache enables summary caching.
func (server Server) WithCache(summaryCache SummaryCache) Server {
	server.summaryCache = summaryCache
	return server
}

// WithTokenCounter enables per-request prompt token estimates in the logs.
func (server Server) WithTokenCounter(counter tokenizer.Counter) Server {
	server.tokenCounter = counter
	return server
}

// Handler returns the HTTP handler serving the summarize and health routes.
func (server Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc(summarizePath, server.handleSummarize)
	router.HandleFunc(healthPath, server.handleHealth)
	return router
}

// Run starts the service and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	address := net.JoinHostPort(server.config.Host, strconv.Itoa(server.config.Port))
	listener, listenErr := net.Listen("tcp", address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve summarizer: %w", serveErr)
		}
		return nil
	})

	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown summarizer: %w", shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

func (server Server) handleSummarize(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		server.writeError(writer, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}

	requestID := uuid.NewString()
	requestLogger := server.logger.With(zap.String("request_id", requestID))
	startTime := time.Now()

	var payload summarizeRequest
	if decodeErr := json.NewDecoder(request.Body).Decode(&payload); decodeErr != nil {
		requestLogger.Warn("rejecting malformed request body", zap.Error(decodeErr))
		server.writeError(writer, http.StatusBadRequest, invalidRequestBodyMessage)
		return
	}

	owner, name, parseErr := github.ParseRepositoryURL(payload.GitHubURL)
	if parseErr != nil {
		requestLogger.Warn("rejecting repository URL", zap.String("github_url", payload.GitHubURL))
		server.respondError(writer, parseErr)
		return
	}
	repositoryName := owner + "/" + name
	requestLogger = requestLogger.With(zap.String("repository", repositoryName))

	if server.summaryCache != nil {
		entry, found, lookupErr := server.summaryCache.Lookup(owner, name)
		if lookupErr != nil {
			requestLogger.Warn("cache lookup failed", zap.Error(lookupErr))
		}
		if found {
			requestLogger.Info("served summary from cache",
				zap.String("cached_at", utils.FormatTimestamp(entry.CreatedAt)),
				zap.Duration("duration", time.Since(startTime)))
			server.writeJSON(writer, http.StatusOK, entry.Summary)
			return
		}
	}

	repository, fetchErr := server.fetcher.FetchRepository(request.Context(), owner, name)
	if fetchErr != nil {
		requestLogger.Warn("repository fetch failed",
			zap.Error(fetchErr),
			zap.Duration("duration", time.Since(startTime)))
		server.respondError(writer, fetchErr)
		return
	}

	bundleText, assembleErr := server.assembler.Assemble(repository.Metadata, repository.DirectoryTree, repository.Contents)
	if assembleErr != nil {
		requestLogger.Warn("bundle assembly failed",
			zap.Error(assembleErr),
			zap.Duration("duration", time.Since(startTime)))
		server.respondError(writer, assembleErr)
		return
	}

	promptTokens := server.estimatePromptTokens(requestLogger, bundleText)

	summary, summarizeErr := server.generator.Summarize(request.Context(), bundleText)
	if summarizeErr != nil {
		requestLogger.Warn("summarization failed",
			zap.Error(summarizeErr),
			zap.Duration("duration", time.Since(startTime)))
		server.respondError(writer, summarizeErr)
		return
	}

	if server.summaryCache != nil {
		if storeErr := server.summaryCache.Store(owner, name, summary); storeErr != nil {
			requestLogger.Warn("cache store failed", zap.Error(storeErr))
		}
	}

	requestLogger.Info("summarize request completed",
		zap.Int("selected_files", len(repository.Contents)),
		zap.Int("prompt_tokens", promptTokens),
		zap.Duration("duration", time.Since(startTime)))
	server.writeJSON(writer, http.StatusOK, summary)
}

func (server Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		server.writeError(writer, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}
	server.writeJSON(writer, http.StatusOK, healthResponse{Status: statusHealthyValue})
}

// estimatePromptTokens reports the bundle's token count when a counter is
// configured; counting failures are logged and reported as zero.
func (server Server) estimatePromptTokens(requestLogger *zap.Logger, bundleText string) int {
	if server.tokenCounter == nil {
		return 0
	}
	tokenCount, countErr := server.tokenCounter.CountString(bundleText)
	if countErr != nil {
		requestLogger.Debug("token estimate failed", zap.Error(countErr))
		return 0
	}
	return tokenCount
}

func (server Server) respondError(writer http.ResponseWriter, err error) {
	server.writeError(writer, statusCodeFromError(err), messageFromError(err))
}

func (server Server) writeError(writer http.ResponseWriter, statusCode int, message string) {
	server.writeJSON(writer, statusCode, errorResponse{Status: statusErrorValue, Message: message})
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := errorResponse{Status: statusErrorValue, Message: fmt.Sprintf("encode response: %v", encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

func statusCodeFromError(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	if errors.Is(err, bundle.ErrEmptyRepository) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func messageFromError(err error) string {
	var messaged interface{ Message() string }
	if errors.As(err, &messaged) {
		return messaged.Message()
	}
	if errors.Is(err, bundle.ErrEmptyRepository) {
		return emptyRepositoryMessage
	}
	return fmt.Sprintf(unexpectedErrorFormat, err.Error())
}
