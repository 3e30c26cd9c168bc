package cart

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage keeps the cart as a JSON document on disk, the terminal
// equivalent of the browser client's localStorage "cart" key.
type FileStorage struct {
	Path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

func (f *FileStorage) Load() (Cart, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Cart{}, nil
		}
		return Cart{}, err
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		// A corrupt cart file is not worth failing the session over.
		return Cart{}, nil
	}
	return cart, nil
}

func (f *FileStorage) Save(cart Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// MemoryStorage is an in-process Storage for tests and throwaway sessions.
type MemoryStorage struct {
	Saved Cart
	Calls int
}

func (m *MemoryStorage) Load() (Cart, error) {
	return m.Saved, nil
}

func (m *MemoryStorage) Save(cart Cart) error {
	m.Saved = cart
	m.Calls++
	return nil
}
