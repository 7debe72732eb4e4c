// Package bundle composes repository metadata, the directory-tree text, and
// fetched file contents into the single bounded document handed to the
// text-generation consumer.
package bundle

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultFileContentCap bounds the rendered length of any single file. The
// cap is independent of the selection budget: selection counts the sizes the
// listing reported, and an oversized or size-underestimated file is cut here
// instead of dominating the document.
const DefaultFileContentCap = 50000

const (
	repositoryHeaderFormat = "# Repository: %s/%s"
	descriptionHeaderWord  = "# Description: "
	statsHeaderFormat      = "# Stars: %d | Forks: %d | Language: %s"
	directoryTreeHeading   = "## Directory Tree"
	fileContentsHeading    = "## File Contents"
	fileSectionPrefix      = "\n### "
	codeFence              = "```"
	truncationMarker       = "\n\n... [truncated]"
)

// ErrEmptyRepository signals that neither tree text nor any file content was
// available, so there is nothing to analyze.
var ErrEmptyRepository = errors.New("repository appears empty or has no analyzable files")

// Metadata holds the repository fields rendered in the bundle header. All
// fields pass through unchanged; empty strings and zero counts are rendered
// as-is except the description line, which is omitted when empty.
type Metadata struct {
	Owner       string
	Name        string
	Description string
	Stars       int
	Forks       int
	Language    string
}

// FileContent pairs a repository path with its fetched content. The slice
// order given to Assemble is the selection order and is preserved verbatim
// in the rendered document.
type FileContent struct {
	Path    string
	Content string
}

// Assembler renders context bundles. The zero value is not usable; construct
// with NewAssembler.
type Assembler struct {
	fileContentCap int
}

// NewAssembler returns an assembler with the default per-file content cap.
func NewAssembler() Assembler {
	return Assembler{fileContentCap: DefaultFileContentCap}
}

// WithFileContentCap returns a copy of the assembler using the provided
// per-file cap. Non-positive values fall back to the default.
func (assembler Assembler) WithFileContentCap(fileContentCap int) Assembler {
	if fileContentCap <= 0 {
		fileContentCap = DefaultFileContentCap
	}
	assembler.fileContentCap = fileContentCap
	return assembler
}

// Assemble builds the bundle document. Sections appear in fixed order:
// metadata header lines, the fenced directory tree, then one fenced section
// per file content in the given order. It returns ErrEmptyRepository when
// the tree text is empty and no file contents are present.
func (assembler Assembler) Assemble(metadata Metadata, treeText string, fileContents []FileContent) (string, error) {
	if len(fileContents) == 0 && treeText == "" {
		return "", ErrEmptyRepository
	}

	sections := make([]string, 0, 10+4*len(fileContents))
	sections = append(sections, fmt.Sprintf(repositoryHeaderFormat, metadata.Owner, metadata.Name))
	if metadata.Description != "" {
		sections = append(sections, descriptionHeaderWord+metadata.Description)
	}
	sections = append(sections, fmt.Sprintf(statsHeaderFormat, metadata.Stars, metadata.Forks, metadata.Language))
	sections = append(sections, "")

	sections = append(sections, directoryTreeHeading)
	sections = append(sections, codeFence)
	sections = append(sections, treeText)
	sections = append(sections, codeFence)
	sections = append(sections, "")

	sections = append(sections, fileContentsHeading)
	for _, fileContent := range fileContents {
		sections = append(sections, fileSectionPrefix+fileContent.Path)
		sections = append(sections, codeFence)
		sections = append(sections, assembler.capContent(fileContent.Content))
		sections = append(sections, codeFence)
	}

	return strings.Join(sections, "\n"), nil
}

// capContent truncates content above the per-file cap, counting characters
// rather than bytes so multi-byte runes are never split.
func (assembler Assembler) capContent(content string) string {
	characterCount := 0
	for byteIndex := range content {
		if characterCount == assembler.fileContentCap {
			return content[:byteIndex] + truncationMarker
		}
		characterCount++
	}
	return content
}
