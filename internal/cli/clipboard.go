package cli

import (
	"github.com/atotto/clipboard"
)

// clipboardCopier copies textual data to the system clipboard.
type clipboardCopier interface {
	Copy(text string) error
}

// systemClipboard implements clipboardCopier using github.com/atotto/clipboard.
type systemClipboard struct{}

// Copy writes text to the system clipboard.
func (systemClipboard) Copy(text string) error {
	return clipboard.WriteAll(text)
}

var _ clipboardCopier = systemClipboard{}
