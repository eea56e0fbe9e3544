package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
)

// InstrumentOutput receives full http message dumps from InstrumentResty.
type InstrumentOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every message into its own file under a directory.
type FilesystemOutput struct {
	directory string
	prefix    string
}

// NewFilesystemOutput clears and recreates `dir`, `prefix` is prepended to
// every file name so that multiple clients can share a directory.
func NewFilesystemOutput(dir, prefix string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, prefix: prefix}, nil
}

// WithPrefix returns an output writing into the same directory with a different prefix.
func (o FilesystemOutput) WithPrefix(prefix string) FilesystemOutput {
	return FilesystemOutput{directory: o.directory, prefix: prefix}
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := id
	if o.prefix != "" {
		name = o.prefix + "-" + id
	}
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
