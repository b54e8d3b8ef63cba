package cmd

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/qoeplatform/qoe/pkg/hasher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// fetchFunc writes a download into w, reporting progress, and returns the
// server-suggested file name.
type fetchFunc func(w io.Writer, progress io.Writer) (string, error)

// saveDownload stores a download at output, or in dir under the server-suggested
// name when output is empty. Partial files are removed on failure. With a
// checksum algorithm the digest of the written bytes is returned as well.
func saveDownload(cmd *cobra.Command, output, dir, fallback string, quiet bool, checksum string, fetch fetchFunc) (string, string, error) {
	var progress io.Writer
	if !quiet {
		progress = cmd.ErrOrStderr()
	}
	var digest hash.Hash
	if checksum != "" {
		h, err := hasher.New(checksum)
		if err != nil {
			return "", "", invalid(err)
		}
		digest = h
	}

	target := output
	var file *os.File
	var err error
	if output != "" {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return "", "", clierr.New(clierr.Internal, "Failed to create output directory: "+err.Error(), err)
		}
		file, err = os.Create(output)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", clierr.New(clierr.Internal, "Failed to create download directory: "+err.Error(), err)
		}
		file, err = os.CreateTemp(dir, ".qoe-download-*.part")
	}
	if err != nil {
		return "", "", clierr.New(clierr.Internal, "Failed to create file: "+err.Error(), err)
	}

	var w io.Writer = file
	if digest != nil {
		w = io.MultiWriter(file, digest)
	}
	name, err := fetch(w, progress)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if rmErr := os.Remove(file.Name()); rmErr != nil {
			log.Warn().Err(rmErr).Str("file", file.Name()).Msg("Failed to remove partial download")
		}
		return "", "", err
	}

	if output == "" {
		if name == "" || name == "." || name == "/" {
			name = fallback
		}
		target = filepath.Join(dir, filepath.Base(name))
		if err := os.Rename(file.Name(), target); err != nil {
			return "", "", clierr.New(clierr.Internal, "Failed to save download: "+err.Error(), err)
		}
	}
	var sum string
	if digest != nil {
		sum = hex.EncodeToString(digest.Sum(nil))
	}
	return target, sum, nil
}

func checkAlgo(algo string) error {
	if algo == "" || hasher.IsValidAlgo(algo) {
		return nil
	}
	return invalid(fmt.Errorf("unsupported checksum algorithm %q, use one of: %s", algo, strings.Join(hasher.Algorithms, ", ")))
}
