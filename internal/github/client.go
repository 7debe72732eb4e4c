// Package github fetches repository metadata, recursive trees, and file
// contents from the GitHub REST API and raw content host.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elevy30/ai-nebius-git-summarize/internal/bundle"
	"github.com/elevy30/ai-nebius-git-summarize/internal/rules"
	"github.com/elevy30/ai-nebius-git-summarize/internal/selection"
)

const (
	defaultAPIBaseURL       = "https://api.github.com"
	defaultRawBaseURL       = "https://raw.githubusercontent.com"
	defaultAPITimeout       = 30 * time.Second
	defaultBranchName       = "main"
	defaultUserAgent        = "gitsum-github-client"
	defaultFetchConcurrency = 8
	defaultMaxContentChars  = int64(100000)

	headerAuthorization       = "Authorization"
	headerAccept              = "Accept"
	headerUserAgent           = "User-Agent"
	headerGitHubAPIVersion    = "X-GitHub-Api-Version"
	acceptGitHubJSON          = "application/vnd.github+json"
	githubAPIVersionValue     = "2022-11-28"
	authorizationBearerPrefix = "Bearer "
	authorizationTokenPrefix  = "token "

	treeItemTypeBlob = "blob"
)

// Client-facing failure messages carried by RequestError values.
const (
	invalidRepositoryURLMessage     = "Invalid GitHub URL. Expected format: https://github.com/{owner}/{repo}"
	repositoryNotFoundMessageFormat = "Repository not found: %s/%s"
	rateLimitExceededMessage        = "GitHub API rate limit exceeded. Try again later."
	metadataFetchFailedMessage      = "Failed to fetch repository data from GitHub"
	metadataParseFailedMessage      = "Failed to parse GitHub API response"
	treeFetchFailedMessage          = "Failed to fetch repository tree from GitHub"
	treeParseFailedMessage          = "Failed to parse GitHub tree response"
	emptyRepositoryMessage          = "Repository appears empty or has no analyzable files"
)

var repositoryURLPattern = regexp.MustCompile(`^https?://github\.com/[\w.\-]+/[\w.\-]+/?$`)

// RequestError maps an upstream failure onto the HTTP status the service
// reports, keeping the client-facing message separate from wrapped detail.
type RequestError struct {
	statusCode int
	message    string
	err        error
}

// NewRequestError builds a RequestError carrying a client-facing message.
func NewRequestError(statusCode int, message string) RequestError {
	return RequestError{statusCode: statusCode, message: message}
}

// WrapRequestError attaches an underlying cause to a client-facing message.
func WrapRequestError(statusCode int, message string, err error) RequestError {
	return RequestError{statusCode: statusCode, message: message, err: err}
}

func (requestError RequestError) Error() string {
	if requestError.err != nil {
		return fmt.Sprintf("%s: %v", requestError.message, requestError.err)
	}
	return requestError.message
}

// Message returns the client-facing text without wrapped detail.
func (requestError RequestError) Message() string {
	return requestError.message
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (requestError RequestError) Unwrap() error {
	return requestError.err
}

// StatusCode reports the HTTP status associated with the failure.
func (requestError RequestError) StatusCode() int {
	if requestError.statusCode == 0 {
		return http.StatusInternalServerError
	}
	return requestError.statusCode
}

// Repository holds everything the assembler needs about a fetched repository.
type Repository struct {
	Metadata      bundle.Metadata
	DefaultBranch string
	DirectoryTree string
	Contents      []bundle.FileContent
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

type repositoryInfo struct {
	Description   string `json:"description"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	Language      string `json:"language"`
	DefaultBranch string `json:"default_branch"`
}

type treeResponse struct {
	Tree      []treeItem `json:"tree"`
	Truncated bool       `json:"truncated"`
}

type treeItem struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Client fetches repository data from the GitHub REST API.
type Client struct {
	client                   httpClient
	apiBase                  string
	rawBase                  string
	userAgent                string
	timeout                  time.Duration
	authorizationHeaderValue string
	maxContentChars          int64
	fetchConcurrency         int
	ruleSet                  rules.RuleSet
	logger                   *zap.Logger
}

// NewClient returns a Client with production defaults. A nil client gets a
// standard http.Client with the default timeout; a nil logger is replaced
// with a no-op logger.
func NewClient(client httpClient, logger *zap.Logger) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Client{
		client:           client,
		apiBase:          defaultAPIBaseURL,
		rawBase:          defaultRawBaseURL,
		userAgent:        defaultUserAgent,
		timeout:          defaultAPITimeout,
		maxContentChars:  defaultMaxContentChars,
		fetchConcurrency: defaultFetchConcurrency,
		ruleSet:          rules.DefaultRuleSet(),
		logger:           logger,
	}
}

// WithAPIBase points the client at an alternate GitHub API base URL.
func (apiClient Client) WithAPIBase(base string) Client {
	if base == "" {
		return apiClient
	}
	apiClient.apiBase = strings.TrimRight(base, "/")
	return apiClient
}

// WithRawBase points the client at an alternate raw content base URL.
func (apiClient Client) WithRawBase(base string) Client {
	if base == "" {
		return apiClient
	}
	apiClient.rawBase = strings.TrimRight(base, "/")
	return apiClient
}

// WithUserAgent overrides the User-Agent header sent on every request.
func (apiClient Client) WithUserAgent(agent string) Client {
	if agent == "" {
		return apiClient
	}
	apiClient.userAgent = agent
	return apiClient
}

// WithTimeout adjusts the request timeout of an owned http.Client.
func (apiClient Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return apiClient
	}
	apiClient.timeout = duration
	if clientWithTimeout, ok := apiClient.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return apiClient
}

// WithAuthorizationToken configures authenticated GitHub API calls.
func (apiClient Client) WithAuthorizationToken(token string) Client {
	apiClient.authorizationHeaderValue = formatAuthorizationHeaderValue(token)
	return apiClient
}

// WithMaxContentChars overrides the overall character limit used to derive
// the content budget.
func (apiClient Client) WithMaxContentChars(limit int64) Client {
	if limit <= 0 {
		return apiClient
	}
	apiClient.maxContentChars = limit
	return apiClient
}

// WithFetchConcurrency bounds the number of parallel raw content downloads.
func (apiClient Client) WithFetchConcurrency(limit int) Client {
	if limit < 1 {
		return apiClient
	}
	apiClient.fetchConcurrency = limit
	return apiClient
}

// WithRuleSet replaces the exclusion and ranking rules.
func (apiClient Client) WithRuleSet(ruleSet rules.RuleSet) Client {
	apiClient.ruleSet = ruleSet
	return apiClient
}

// ParseRepositoryURL extracts owner and repository name from a canonical
// GitHub repository URL. Anything else yields a RequestError with status 400.
func ParseRepositoryURL(rawURL string) (string, string, error) {
	if !repositoryURLPattern.MatchString(rawURL) {
		return "", "", NewRequestError(http.StatusBadRequest, invalidRepositoryURLMessage)
	}
	trimmedURL := strings.TrimRight(rawURL, "/")
	segments := strings.Split(trimmedURL, "/")
	owner := segments[len(segments)-2]
	name := segments[len(segments)-1]
	return owner, name, nil
}

// FetchRepository retrieves metadata, lists the recursive tree, selects the
// highest-value files under the content budget, and downloads their contents
// concurrently. Individual download failures drop that file only.
func (apiClient Client) FetchRepository(ctx context.Context, owner string, name string) (Repository, error) {
	metadata, defaultBranch, metadataErr := apiClient.fetchMetadata(ctx, owner, name)
	if metadataErr != nil {
		return Repository{}, metadataErr
	}

	treeItems, treeErr := apiClient.fetchTree(ctx, owner, name, defaultBranch)
	if treeErr != nil {
		return Repository{}, treeErr
	}

	fileEntries := make([]selection.FileEntry, 0, len(treeItems))
	treePaths := make([]string, 0, len(treeItems))
	for _, item := range treeItems {
		if item.Type != treeItemTypeBlob {
			continue
		}
		fileEntries = append(fileEntries, selection.FileEntry{Path: item.Path, Size: item.Size})
		if !apiClient.ruleSet.IsExcluded(item.Path) {
			treePaths = append(treePaths, item.Path)
		}
	}

	directoryTree := selection.BuildTree(treePaths)
	contentBudget := selection.ContentBudget(apiClient.maxContentChars, len(directoryTree))
	selectedEntries := selection.Select(fileEntries, contentBudget, apiClient.ruleSet)
	apiClient.logger.Debug("selected repository files",
		zap.String("repository", owner+"/"+name),
		zap.Int("listed", len(fileEntries)),
		zap.Int("selected", len(selectedEntries)),
		zap.Int64("budget", contentBudget))

	contents := apiClient.fetchContents(ctx, owner, name, defaultBranch, selectedEntries)

	if len(contents) == 0 && directoryTree == "" {
		return Repository{}, NewRequestError(http.StatusUnprocessableEntity, emptyRepositoryMessage)
	}

	metadata.Owner = owner
	metadata.Name = name
	return Repository{
		Metadata:      metadata,
		DefaultBranch: defaultBranch,
		DirectoryTree: directoryTree,
		Contents:      contents,
	}, nil
}

func (apiClient Client) fetchMetadata(ctx context.Context, owner string, name string) (bundle.Metadata, string, error) {
	requestURL := fmt.Sprintf("%s/repos/%s/%s", apiClient.apiBase, url.PathEscape(owner), url.PathEscape(name))
	response, requestErr := apiClient.get(ctx, requestURL, true)
	if requestErr != nil {
		return bundle.Metadata{}, "", WrapRequestError(http.StatusBadGateway, metadataFetchFailedMessage, requestErr)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return bundle.Metadata{}, "", NewRequestError(http.StatusNotFound, fmt.Sprintf(repositoryNotFoundMessageFormat, owner, name))
	case http.StatusForbidden:
		return bundle.Metadata{}, "", NewRequestError(http.StatusTooManyRequests, rateLimitExceededMessage)
	default:
		return bundle.Metadata{}, "", NewRequestError(http.StatusBadGateway, metadataFetchFailedMessage)
	}

	var info repositoryInfo
	if decodeErr := json.NewDecoder(response.Body).Decode(&info); decodeErr != nil {
		return bundle.Metadata{}, "", WrapRequestError(http.StatusBadGateway, metadataParseFailedMessage, decodeErr)
	}

	defaultBranch := info.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = defaultBranchName
	}
	metadata := bundle.Metadata{
		Description: info.Description,
		Stars:       info.Stars,
		Forks:       info.Forks,
		Language:    info.Language,
	}
	return metadata, defaultBranch, nil
}

func (apiClient Client) fetchTree(ctx context.Context, owner string, name string, branch string) ([]treeItem, error) {
	requestURL := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		apiClient.apiBase, url.PathEscape(owner), url.PathEscape(name), url.PathEscape(branch))
	response, requestErr := apiClient.get(ctx, requestURL, true)
	if requestErr != nil {
		return nil, WrapRequestError(http.StatusBadGateway, treeFetchFailedMessage, requestErr)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, NewRequestError(http.StatusBadGateway, treeFetchFailedMessage)
	}
	var payload treeResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&payload); decodeErr != nil {
		return nil, WrapRequestError(http.StatusBadGateway, treeParseFailedMessage, decodeErr)
	}
	if payload.Truncated {
		apiClient.logger.Warn("GitHub tree listing truncated",
			zap.String("repository", owner+"/"+name),
			zap.String("branch", branch))
	}
	return payload.Tree, nil
}

func (apiClient Client) fetchContents(ctx context.Context, owner string, name string, branch string, selectedEntries []selection.FileEntry) []bundle.FileContent {
	results := make([]*bundle.FileContent, len(selectedEntries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(apiClient.fetchConcurrency)
	for index, entry := range selectedEntries {
		index, entry := index, entry
		group.Go(func() error {
			content, fetchErr := apiClient.fetchRawContent(groupCtx, owner, name, branch, entry.Path)
			if fetchErr != nil {
				apiClient.logger.Warn("skipping file after failed download",
					zap.String("path", entry.Path),
					zap.Error(fetchErr))
				return nil
			}
			results[index] = &bundle.FileContent{Path: entry.Path, Content: content}
			return nil
		})
	}
	// Workers never return errors; a failed download only drops its own file.
	_ = group.Wait()

	contents := make([]bundle.FileContent, 0, len(selectedEntries))
	for _, result := range results {
		if result != nil {
			contents = append(contents, *result)
		}
	}
	return contents
}

func (apiClient Client) fetchRawContent(ctx context.Context, owner string, name string, branch string, filePath string) (string, error) {
	requestURL := fmt.Sprintf("%s/%s/%s/%s/%s",
		apiClient.rawBase, url.PathEscape(owner), url.PathEscape(name), url.PathEscape(branch), escapePathSegments(filePath))
	response, requestErr := apiClient.get(ctx, requestURL, false)
	if requestErr != nil {
		return "", requestErr
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", response.StatusCode, requestURL)
	}
	contentBytes, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return "", readErr
	}
	return string(contentBytes), nil
}

func (apiClient Client) get(ctx context.Context, requestURL string, includeAPIHeaders bool) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if apiClient.userAgent != "" {
		request.Header.Set(headerUserAgent, apiClient.userAgent)
	}
	if apiClient.authorizationHeaderValue != "" {
		request.Header.Set(headerAuthorization, apiClient.authorizationHeaderValue)
	}
	if includeAPIHeaders {
		request.Header.Set(headerAccept, acceptGitHubJSON)
		request.Header.Set(headerGitHubAPIVersion, githubAPIVersionValue)
	}
	return apiClient.client.Do(request)
}

func escapePathSegments(filePath string) string {
	segments := strings.Split(filePath, "/")
	escaped := make([]string, len(segments))
	for index, segment := range segments {
		escaped[index] = url.PathEscape(segment)
	}
	return strings.Join(escaped, "/")
}

func formatAuthorizationHeaderValue(rawToken string) string {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	bearerLower := strings.ToLower(authorizationBearerPrefix)
	tokenLower := strings.ToLower(authorizationTokenPrefix)
	if strings.HasPrefix(lower, bearerLower) || strings.HasPrefix(lower, tokenLower) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		return authorizationBearerPrefix + trimmed
	}
	return authorizationTokenPrefix + trimmed
}
