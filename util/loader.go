// Package util - Input file discovery for the command line tools.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageExtensions are the file types gocv can decode for the detector.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// ImageFile is an image on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from a "frame-N" name, or -1.
	Frame int
}

// frameNumber parses names such as "frame-0042.jpg".
func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame-"))
	if err != nil {
		return -1
	}
	return n
}

// LoadDirectoryImageFiles lists the image files of dir. Numbered frames come
// first in frame order, followed by the other images by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The images found.
//   - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !ImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: frameNumber(entry.Name()),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if (a.Frame < 0) != (b.Frame < 0) {
			return a.Frame >= 0
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Path < b.Path
	})

	return files, nil
}

// ExpandPaths replaces every directory in paths by the images it contains.
// Plain files are kept as given.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := LoadDirectoryImageFiles(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			out = append(out, f.Path)
		}
	}
	return out, nil
}
