package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func writeJSONResponse(t *testing.T, writer http.ResponseWriter, payload any) {
	t.Helper()
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), nil).
		WithAPIBase(server.URL).
		WithRawBase(server.URL + "/raw")
}

func TestParseRepositoryURL(t *testing.T) {
	testCases := []struct {
		name          string
		rawURL        string
		expectedOwner string
		expectedName  string
		expectError   bool
	}{
		{name: "canonical https", rawURL: "https://github.com/acme/widget", expectedOwner: "acme", expectedName: "widget"},
		{name: "http scheme", rawURL: "http://github.com/acme/widget", expectedOwner: "acme", expectedName: "widget"},
		{name: "trailing slash trimmed", rawURL: "https://github.com/acme/widget/", expectedOwner: "acme", expectedName: "widget"},
		{name: "dots and dashes", rawURL: "https://github.com/my-org.io/repo.name-x", expectedOwner: "my-org.io", expectedName: "repo.name-x"},
		{name: "missing repository", rawURL: "https://github.com/acme", expectError: true},
		{name: "extra path segment", rawURL: "https://github.com/acme/widget/tree/main", expectError: true},
		{name: "wrong host", rawURL: "https://gitlab.com/acme/widget", expectError: true},
		{name: "no scheme", rawURL: "github.com/acme/widget", expectError: true},
		{name: "empty", rawURL: "", expectError: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			owner, name, parseErr := ParseRepositoryURL(testCase.rawURL)
			if testCase.expectError {
				if parseErr == nil {
					t.Fatalf("expected error for %q", testCase.rawURL)
				}
				var requestError RequestError
				if !errors.As(parseErr, &requestError) {
					t.Fatalf("expected RequestError, got %T", parseErr)
				}
				if requestError.StatusCode() != http.StatusBadRequest {
					t.Fatalf("expected status 400, got %d", requestError.StatusCode())
				}
				return
			}
			if parseErr != nil {
				t.Fatalf("unexpected error: %v", parseErr)
			}
			if owner != testCase.expectedOwner || name != testCase.expectedName {
				t.Fatalf("expected %s/%s, got %s/%s", testCase.expectedOwner, testCase.expectedName, owner, name)
			}
		})
	}
}

func TestFetchRepositoryAssemblesSelectionAndTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get(headerAccept) != acceptGitHubJSON {
			t.Errorf("expected accept header %s, got %s", acceptGitHubJSON, request.Header.Get(headerAccept))
		}
		if request.Header.Get(headerGitHubAPIVersion) != githubAPIVersionValue {
			t.Errorf("expected API version header, got %s", request.Header.Get(headerGitHubAPIVersion))
		}
		if request.Header.Get(headerAuthorization) != authorizationTokenPrefix+"ghp_secret" {
			t.Errorf("expected token authorization, got %s", request.Header.Get(headerAuthorization))
		}
		writeJSONResponse(t, writer, map[string]any{
			"description":      "Widget toolkit",
			"stargazers_count": 42,
			"forks_count":      7,
			"language":         "Go",
			"default_branch":   "main",
		})
	})
	mux.HandleFunc("/repos/acme/widget/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("recursive") != "1" {
			t.Errorf("expected recursive=1, got %s", request.URL.RawQuery)
		}
		writeJSONResponse(t, writer, map[string]any{
			"tree": []map[string]any{
				{"path": "README.md", "type": "blob", "size": 40},
				{"path": "main.go", "type": "blob", "size": 60},
				{"path": "src", "type": "tree"},
				{"path": "src/handler.go", "type": "blob", "size": 80},
				{"path": "vendor/dep.go", "type": "blob", "size": 50},
				{"path": "package-lock.json", "type": "blob", "size": 999},
				{"path": "logo.png", "type": "blob", "size": 10},
			},
		})
	})
	rawContents := map[string]string{
		"/raw/acme/widget/main/README.md":      "# Widget",
		"/raw/acme/widget/main/main.go":        "package main",
		"/raw/acme/widget/main/src/handler.go": "package src",
	}
	mux.HandleFunc("/raw/", func(writer http.ResponseWriter, request *http.Request) {
		content, known := rawContents[request.URL.Path]
		if !known {
			t.Errorf("unexpected raw fetch %s", request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(writer, content)
	})

	apiClient := newTestClient(t, mux).WithAuthorizationToken("ghp_secret")
	repository, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "widget")
	if fetchErr != nil {
		t.Fatalf("fetch repository: %v", fetchErr)
	}

	if repository.Metadata.Owner != "acme" || repository.Metadata.Name != "widget" {
		t.Errorf("unexpected metadata identity %s/%s", repository.Metadata.Owner, repository.Metadata.Name)
	}
	if repository.Metadata.Description != "Widget toolkit" {
		t.Errorf("unexpected description %q", repository.Metadata.Description)
	}
	if repository.Metadata.Stars != 42 || repository.Metadata.Forks != 7 {
		t.Errorf("unexpected counters %d/%d", repository.Metadata.Stars, repository.Metadata.Forks)
	}
	if repository.DefaultBranch != "main" {
		t.Errorf("unexpected default branch %q", repository.DefaultBranch)
	}

	expectedTree := "README.md\nmain.go\nsrc/\n  handler.go"
	if repository.DirectoryTree != expectedTree {
		t.Errorf("unexpected tree:\n%s", repository.DirectoryTree)
	}

	expectedOrder := []string{"README.md", "main.go", "src/handler.go"}
	if len(repository.Contents) != len(expectedOrder) {
		t.Fatalf("expected %d contents, got %d", len(expectedOrder), len(repository.Contents))
	}
	for index, expectedPath := range expectedOrder {
		if repository.Contents[index].Path != expectedPath {
			t.Errorf("content %d: expected %s, got %s", index, expectedPath, repository.Contents[index].Path)
		}
	}
	if repository.Contents[0].Content != "# Widget" {
		t.Errorf("unexpected README content %q", repository.Contents[0].Content)
	}
}

func TestFetchRepositoryStatusMapping(t *testing.T) {
	testCases := []struct {
		name            string
		metadataStatus  int
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "missing repository",
			metadataStatus:  http.StatusNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "Repository not found: acme/ghost",
		},
		{
			name:            "rate limited",
			metadataStatus:  http.StatusForbidden,
			expectedStatus:  http.StatusTooManyRequests,
			expectedMessage: rateLimitExceededMessage,
		},
		{
			name:            "upstream failure",
			metadataStatus:  http.StatusInternalServerError,
			expectedStatus:  http.StatusBadGateway,
			expectedMessage: metadataFetchFailedMessage,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/ghost", func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(testCase.metadataStatus)
			})
			apiClient := newTestClient(t, mux)

			_, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "ghost")
			var requestError RequestError
			if !errors.As(fetchErr, &requestError) {
				t.Fatalf("expected RequestError, got %v", fetchErr)
			}
			if requestError.StatusCode() != testCase.expectedStatus {
				t.Errorf("expected status %d, got %d", testCase.expectedStatus, requestError.StatusCode())
			}
			if requestError.Message() != testCase.expectedMessage {
				t.Errorf("expected message %q, got %q", testCase.expectedMessage, requestError.Message())
			}
		})
	}
}

func TestFetchRepositoryTreeFailureMapsToBadGateway(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/acme/widget/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusInternalServerError)
	})
	apiClient := newTestClient(t, mux)

	_, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "widget")
	var requestError RequestError
	if !errors.As(fetchErr, &requestError) {
		t.Fatalf("expected RequestError, got %v", fetchErr)
	}
	if requestError.StatusCode() != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", requestError.StatusCode())
	}
	if requestError.Message() != treeFetchFailedMessage {
		t.Errorf("expected message %q, got %q", treeFetchFailedMessage, requestError.Message())
	}
}

func TestFetchRepositoryFailedDownloadsAreNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/acme/widget/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{
			"tree": []map[string]any{
				{"path": "README.md", "type": "blob", "size": 40},
				{"path": "main.go", "type": "blob", "size": 60},
			},
		})
	})
	mux.HandleFunc("/raw/acme/widget/main/README.md", func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprint(writer, "# Widget")
	})
	mux.HandleFunc("/raw/acme/widget/main/main.go", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	})
	apiClient := newTestClient(t, mux)

	repository, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "widget")
	if fetchErr != nil {
		t.Fatalf("fetch repository: %v", fetchErr)
	}
	if len(repository.Contents) != 1 {
		t.Fatalf("expected one surviving content, got %d", len(repository.Contents))
	}
	if repository.Contents[0].Path != "README.md" {
		t.Errorf("expected README.md to survive, got %s", repository.Contents[0].Path)
	}
}

func TestFetchRepositoryEmptyRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/empty", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/acme/empty/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{"tree": []map[string]any{}})
	})
	apiClient := newTestClient(t, mux)

	_, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "empty")
	var requestError RequestError
	if !errors.As(fetchErr, &requestError) {
		t.Fatalf("expected RequestError, got %v", fetchErr)
	}
	if requestError.StatusCode() != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", requestError.StatusCode())
	}
	if requestError.Message() != emptyRepositoryMessage {
		t.Errorf("expected message %q, got %q", emptyRepositoryMessage, requestError.Message())
	}
}

func TestFetchRepositoryHonorsContentBudget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{"default_branch": "main"})
	})
	mux.HandleFunc("/repos/acme/widget/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		writeJSONResponse(t, writer, map[string]any{
			"tree": []map[string]any{
				{"path": "large.go", "type": "blob", "size": 6000},
				{"path": "medium.go", "type": "blob", "size": 5000},
				{"path": "small.go", "type": "blob", "size": 4000},
			},
		})
	})
	mux.HandleFunc("/raw/", func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/raw/acme/widget/main/large.go" {
			t.Errorf("budget-skipped file was fetched")
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(writer, "package widget")
	})

	// A one-character limit floors the derived budget at its minimum of
	// 10000, so the two smallest files fit and the largest overflows.
	apiClient := newTestClient(t, mux).WithMaxContentChars(1)

	repository, fetchErr := apiClient.FetchRepository(context.Background(), "acme", "widget")
	if fetchErr != nil {
		t.Fatalf("fetch repository: %v", fetchErr)
	}
	expectedOrder := []string{"small.go", "medium.go"}
	if len(repository.Contents) != len(expectedOrder) {
		t.Fatalf("expected %d contents, got %d", len(expectedOrder), len(repository.Contents))
	}
	for index, expectedPath := range expectedOrder {
		if repository.Contents[index].Path != expectedPath {
			t.Errorf("content %d: expected %s, got %s", index, expectedPath, repository.Contents[index].Path)
		}
	}
}

func TestFormatAuthorizationHeaderValue(t *testing.T) {
	testCases := []struct {
		name     string
		token    string
		expected string
	}{
		{name: "personal access token", token: "ghp_abc123", expected: authorizationTokenPrefix + "ghp_abc123"},
		{name: "explicit bearer prefix retained", token: "Bearer prefixed", expected: "Bearer prefixed"},
		{name: "explicit token prefix retained", token: "token prefixed", expected: "token prefixed"},
		{name: "jwt defaults to bearer", token: "a.b.c", expected: authorizationBearerPrefix + "a.b.c"},
		{name: "empty", token: "", expected: ""},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			formatted := formatAuthorizationHeaderValue(testCase.token)
			if formatted != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, formatted)
			}
		})
	}
}
