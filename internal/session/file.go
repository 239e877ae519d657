package session

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileStore держит сессию одним JSON-файлом с отступами,
// совместимым с тем, что пишут другие клиенты этого протокола.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает файл поверх значений по умолчанию: отсутствующие
// в файле ключи остаются дефолтными.
func (fs *FileStore) Load() (Data, bool, error) {
	data := Defaults()
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, false, nil
		}
		return data, false, err
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return data, false, err
	}
	return data, true, nil
}

func (fs *FileStore) Save(data Data) error {
	b, err := json.MarshalIndent(&data, "", "  ")
	if err != nil {
		return err
	}
	_ = os.MkdirAll(filepath.Dir(fs.path), 0755)
	return os.WriteFile(fs.path, b, 0644)
}
