package staging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Expand decompresses every .gz genome in files next to its source, running
// at most threads decompressions at once. The compressed file is kept.
// Files whose expanded twin already exists are skipped, so Expand is safe to
// rerun. It returns the uncompressed genome paths, sorted and de-duplicated.
func Expand(ctx context.Context, files []string, threads int) ([]string, error) {
	if threads < 1 {
		threads = 1
	}

	out := make(map[string]struct{}, len(files))
	var pending []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".gz") {
			out[f] = struct{}{}
			continue
		}
		target := strings.TrimSuffix(f, ".gz")
		out[target] = struct{}{}
		if info, err := os.Stat(target); err == nil && info.Size() > 0 {
			continue
		}
		pending = append(pending, f)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, f := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return gunzip(f, strings.TrimSuffix(f, ".gz"))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(out))
	for p := range out {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// gunzip writes the decompressed content of src to dst through a temporary
// file in the same directory, so dst never holds a partial genome.
func gunzip(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("read gzip header %s: %w", src, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, zr); err != nil {
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}
