// Package data provides the dataset glue around the gnn core: downloading and
// caching public datasets, parsing them into plain numeric arrays, and
// packing graphs into batches. Nothing here is clever; the interesting parts
// live in the gnn package.
package data

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Download fetches url into filePath, creating parent directories as needed.
// A progress bar is shown when the server reports a content length.
func Download(url, filePath string) (size int64, err error) {
	if err = os.MkdirAll(filepath.Dir(filePath), 0777); err != nil {
		return 0, errors.Wrapf(err, "failed to create directory for %q", filePath)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed creating file %q", filePath)
	}
	defer file.Close()

	resp, err := http.Get(url)
	if err != nil {
		return 0, errors.Wrapf(err, "failed downloading %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("failed downloading %q: %s", url, resp.Status)
	}

	var w io.Writer = file
	if resp.ContentLength > 0 {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(filePath))
		defer bar.Close()
		w = io.MultiWriter(file, bar)
	}

	size, err = io.Copy(w, resp.Body)
	if err != nil {
		return 0, errors.Wrapf(err, "failed saving %q", filePath)
	}
	klog.V(1).Infof("downloaded %s (%s)", filePath, humanize.Bytes(uint64(size)))
	return size, nil
}

// DownloadIfMissing downloads url to filePath only when the file doesn't
// already exist, so repeated runs hit the cache.
func DownloadIfMissing(url, filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		klog.V(1).Infof("using cached %s", filePath)
		return nil
	}
	_, err := Download(url, filePath)
	return err
}

// ExtractTarGz unpacks a .tgz archive into dir. Paths escaping dir are
// rejected.
func ExtractTarGz(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrapf(err, "failed opening %q", archivePath)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "failed reading gzip %q", archivePath)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed reading tar %q", archivePath)
		}

		target := filepath.Join(dir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return errors.Errorf("tar entry %q escapes %q", hdr.Name, dir)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0777); err != nil {
				return errors.Wrapf(err, "failed creating %q", target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0777); err != nil {
				return errors.Wrapf(err, "failed creating dir for %q", target)
			}
			out, err := os.Create(target)
			if err != nil {
				return errors.Wrapf(err, "failed creating %q", target)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errors.Wrapf(err, "failed extracting %q", target)
			}
			out.Close()
		default:
			return errors.Errorf("unsupported tar entry type %d for %q", hdr.Typeflag, hdr.Name)
		}
	}
}
