package store

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/model"
)

// FileStore persists the item map as a pretty-printed JSON document. A
// missing or unreadable file degrades to an empty map so a first run and a
// wiped data file behave the same.
type FileStore struct {
	path string
}

// NewFile creates a FileStore at the given path.
func NewFile(path string) *FileStore {
	if path == "" {
		path = "price_data.json"
	}
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (map[string]*model.TrackedItem, error) {
	items := make(map[string]*model.TrackedItem)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return items, nil
		}
		zap.L().Warn("file: read data file failed, starting empty",
			zap.String("path", f.path),
			zap.Error(err),
		)
		return items, nil
	}

	if err := json.Unmarshal(data, &items); err != nil {
		zap.L().Warn("file: data file corrupt, starting empty",
			zap.String("path", f.path),
			zap.Error(err),
		)
		return make(map[string]*model.TrackedItem), nil
	}
	return items, nil
}

func (f *FileStore) Save(_ context.Context, items map[string]*model.TrackedItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "file: marshal items")
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return eris.Wrapf(err, "file: write %s", f.path)
	}
	return nil
}

func (f *FileStore) Migrate(_ context.Context) error { return nil }

func (f *FileStore) Close() error { return nil }
