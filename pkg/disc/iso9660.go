package disc

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/nareix/joy4/utils/bits/pio"
)

// Errors.
var (
	ErrNotISO9660 = errors.New("not an iso9660 image")
	ErrNotFound   = errors.New("file not found")
)

const (
	pvdSector        = 16
	rootRecordOffset = 156
	minRecordSize    = 34
	flagDirectory    = 0x02

	// Bound on directory nesting, images with loops are rejected.
	maxDepth = 32
)

// FileEntry file on the disc.
type FileEntry struct {
	Path string // Slash separated, without version suffix.
	LBA  uint32
	Size uint32
}

// Name returns the base name of the file.
func (f FileEntry) Name() string {
	return path.Base(f.Path)
}

// ISO9660 read-only view of the file system on a disc image.
type ISO9660 struct {
	sectors *SectorReader
	root    record
}

type record struct {
	lba   uint32
	size  uint32
	flags uint8
	name  string
}

// parseRecord parses a directory record, the both-endian
// fields are read from their big-endian half.
func parseRecord(buf []byte) (record, bool) {
	if len(buf) < minRecordSize-1 {
		return record{}, false
	}
	nameLen := int(buf[32])
	if 33+nameLen > len(buf) {
		return record{}, false
	}
	name := string(buf[33 : 33+nameLen])
	if i := strings.IndexByte(name, ';'); i != -1 {
		name = name[:i]
	}
	return record{
		lba:   pio.U32BE(buf[6:10]),
		size:  pio.U32BE(buf[14:18]),
		flags: buf[25],
		name:  strings.TrimSuffix(name, "."),
	}, true
}

// Open reads the primary volume descriptor.
func Open(r io.ReaderAt) (*ISO9660, error) {
	sectors := NewSectorReader(r)
	pvd, err := sectors.ReadSector(pvdSector)
	if err != nil {
		return nil, fmt.Errorf("read volume descriptor: %w", err)
	}
	if pvd[0] != 1 || string(pvd[1:6]) != "CD001" {
		return nil, ErrNotISO9660
	}

	root, ok := parseRecord(pvd[rootRecordOffset : rootRecordOffset+minRecordSize])
	if !ok {
		return nil, fmt.Errorf("%w: invalid root record", ErrNotISO9660)
	}
	return &ISO9660{
		sectors: sectors,
		root:    root,
	}, nil
}

// Files returns every file on the disc sorted by path.
func (iso *ISO9660) Files() ([]FileEntry, error) {
	var files []FileEntry
	if err := iso.walk(iso.root, "", 0, &files); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func (iso *ISO9660) walk(dir record, prefix string, depth int, files *[]FileEntry) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: directories nested deeper than %d", ErrNotISO9660, maxDepth)
	}

	data, err := iso.sectors.Read(dir.lba, int(dir.size))
	if err != nil {
		return fmt.Errorf("read directory %q: %w", prefix, err)
	}

	for pos := 0; pos < len(data); {
		length := int(data[pos])
		if length == 0 {
			// Records never cross sector boundaries.
			pos = (pos/Form1PayloadSize + 1) * Form1PayloadSize
			continue
		}
		end := pos + length
		if end > len(data) {
			end = len(data)
		}

		rec, ok := parseRecord(data[pos:end])
		pos += length
		if !ok || rec.name == "" || rec.name == "\x00" || rec.name == "\x01" {
			continue
		}

		p := rec.name
		if prefix != "" {
			p = prefix + "/" + rec.name
		}
		if rec.flags&flagDirectory != 0 {
			if err := iso.walk(rec, p, depth+1, files); err != nil {
				return err
			}
			continue
		}
		*files = append(*files, FileEntry{Path: p, LBA: rec.lba, Size: rec.size})
	}
	return nil
}

// ReadFile returns the contents of a file.
func (iso *ISO9660) ReadFile(f FileEntry) ([]byte, error) {
	data, err := iso.sectors.Read(f.LBA, int(f.Size))
	if err != nil {
		return nil, fmt.Errorf("read %v: %w", f.Path, err)
	}
	return data, nil
}

// Find returns the file matching name, either its full path
// or its base name. Matching is case insensitive.
func (iso *ISO9660) Find(name string) (FileEntry, error) {
	files, err := iso.Files()
	if err != nil {
		return FileEntry{}, err
	}
	for _, f := range files {
		if strings.EqualFold(f.Path, name) || strings.EqualFold(f.Name(), name) {
			return f, nil
		}
	}
	return FileEntry{}, fmt.Errorf("%w: %v", ErrNotFound, name)
}

// FindCPK lists the movie files on the disc.
func (iso *ISO9660) FindCPK() ([]FileEntry, error) {
	files, err := iso.Files()
	if err != nil {
		return nil, err
	}
	var movies []FileEntry
	for _, f := range files {
		if strings.EqualFold(path.Ext(f.Path), ".cpk") {
			movies = append(movies, f)
		}
	}
	return movies, nil
}
