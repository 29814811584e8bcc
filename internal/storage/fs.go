package storage

import (
	"io"
	"os"
	"path/filepath"
)

type FSStore struct {
	uploadDir string
	thumbDir  string
	tempDir   string
}

func NewFSStore(root string) (*FSStore, error) {
	s := &FSStore{
		uploadDir: filepath.Join(root, "uploads"),
		thumbDir:  filepath.Join(root, "thumbnails"),
		tempDir:   filepath.Join(root, "tmp"),
	}
	for _, dir := range []string{s.uploadDir, s.thumbDir, s.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FSStore) SaveUpload(objectName string, r io.Reader) (string, error) {
	path := filepath.Join(s.uploadDir, objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *FSStore) UploadPath(objectName string) string {
	return filepath.Join(s.uploadDir, objectName)
}

func (s *FSStore) ThumbnailPath(objectName string) string {
	return filepath.Join(s.thumbDir, objectName)
}

func (s *FSStore) ScratchDir(id string) (string, error) {
	dir := filepath.Join(s.tempDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *FSStore) Exists(path string) error {
	_, err := os.Stat(path)
	return err
}

func (s *FSStore) Delete(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FSStore) DeleteDir(path string) error {
	return os.RemoveAll(path)
}
