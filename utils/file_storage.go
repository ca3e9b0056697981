package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStorage keeps named files under one base directory.
type FileStorage interface {
	UploadFileFromReader(src io.Reader, fileName string) (string, error)
	DownloadFile(fileName string) (io.ReadCloser, error)
	DeleteFile(fileName string) error
}

type LocalFileStorage struct {
	uploadPath string
}

func NewLocalFileStorage(uploadPath string) *LocalFileStorage {
	return &LocalFileStorage{uploadPath: uploadPath}
}

// Path returns where fileName lives. Directory parts of fileName are ignored.
func (s *LocalFileStorage) Path(fileName string) string {
	return filepath.Join(s.uploadPath, filepath.Base(fileName))
}

// UploadFileFromReader copies src into the storage directory and returns the file path
func (s *LocalFileStorage) UploadFileFromReader(src io.Reader, fileName string) (string, error) {
	filePath := s.Path(fileName)

	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		// Clean up on error
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return filePath, nil
}

// DownloadFile retrieves a file for reading
func (s *LocalFileStorage) DownloadFile(fileName string) (io.ReadCloser, error) {
	file, err := os.Open(s.Path(fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// DeleteFile removes a file from storage; a missing file is not an error
func (s *LocalFileStorage) DeleteFile(fileName string) error {
	err := os.Remove(s.Path(fileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
