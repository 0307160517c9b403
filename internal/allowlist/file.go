// Package allowlist reads the static authorized-email file.
package allowlist

import (
	"bufio"
	"errors"
	"io/fs"
	"os"

	"MarksAPI/internal/model"
)

// File is one email per line. It is re-read on every call so edits apply
// without a restart.
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

// Load returns the normalized, non-blank lines. A missing file or an empty
// Path is an empty list.
func (f *File) Load() ([]string, error) {
	if f == nil || f.Path == "" {
		return nil, nil
	}
	fh, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var out []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		if email := model.NormalizeEmail(sc.Text()); email != "" {
			out = append(out, email)
		}
	}
	return out, sc.Err()
}

// Contains reports whether the normalized email is listed.
func (f *File) Contains(email string) (bool, error) {
	emails, err := f.Load()
	if err != nil {
		return false, err
	}
	email = model.NormalizeEmail(email)
	for _, e := range emails {
		if e == email {
			return true, nil
		}
	}
	return false, nil
}
