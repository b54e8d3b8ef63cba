// Package operations holds the local file work behind bulk document commands.
package operations

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/qoeplatform/qoe/pkg/hasher"
	"github.com/qoeplatform/qoe/pkg/pool"
)

// DefaultExclusions are name patterns never picked up from a data room folder.
var DefaultExclusions = []string{".*", "~$*", "Thumbs.db", "desktop.ini"}

// FindFiles walks dir and returns the files whose extension is in exts (any case)
// and whose name matches no exclusion pattern. Subdirectories are only entered when
// recursive is set.
func FindFiles(dir string, recursive bool, exts []string, exclusions []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && (!recursive || excluded(info.Name(), exclusions)) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(info.Name(), exclusions) {
			return nil
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(info.Name()))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// HashResult is the digest of one file.
type HashResult struct {
	File string
	Hash string
	Err  error
}

// HashFiles digests files with numWorkers goroutines. results[i] belongs to files[i].
func HashFiles(ctx context.Context, files []string, algo string, numWorkers int) []HashResult {
	results, _ := pool.Map(ctx, files, numWorkers, func(ctx context.Context, path string) (HashResult, error) {
		sum, err := hasher.SumFile(path, algo)
		return HashResult{File: path, Hash: sum, Err: err}, nil
	})
	for i := range results {
		if results[i].File == "" {
			results[i] = HashResult{File: files[i], Err: ctx.Err()}
		}
	}
	return results
}
