package cpk

import (
	"cpk/pkg/disc"
	"fmt"
	"io"
	"os"
)

// source movie file to decode.
type source struct {
	name string
	size int64
	read func() ([]byte, error)
}

func fileSources(paths []string) ([]source, error) {
	sources := make([]source, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		path := path
		sources = append(sources, source{
			name: path,
			size: info.Size(),
			read: func() ([]byte, error) {
				return os.ReadFile(path)
			},
		})
	}
	return sources, nil
}

// discSources lists the named movies on the disc, every
// movie if names is empty. The returned close function
// must be called once the sources are no longer used.
func discSources(path string, names []string) ([]source, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	sources, err := discSourcesFromImage(file, names)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("disc %v: %w", path, err)
	}
	return sources, file.Close, nil
}

func discSourcesFromImage(image io.ReaderAt, names []string) ([]source, error) {
	iso, err := disc.Open(image)
	if err != nil {
		return nil, err
	}

	var entries []disc.FileEntry
	if len(names) == 0 {
		if entries, err = iso.FindCPK(); err != nil {
			return nil, err
		}
	}
	for _, name := range names {
		entry, err := iso.Find(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sources := make([]source, 0, len(entries))
	for _, entry := range entries {
		entry := entry
		sources = append(sources, source{
			name: entry.Path,
			size: int64(entry.Size),
			read: func() ([]byte, error) {
				return iso.ReadFile(entry)
			},
		})
	}
	return sources, nil
}
