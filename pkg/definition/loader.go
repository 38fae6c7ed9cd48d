package definition

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// LoadFS walks fsys and parses JSON/YAML wizard files. Every definition is
// compiled once so configuration errors surface at load time.
// When fsys is nil or holds no definition files, the store is empty.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{wizards: make(map[string]Definition)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definition: read %s: %w", path, err)
		}

		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for rawID, def := range doc.Wizards {
			id := strings.TrimSpace(rawID)
			if id == "" {
				return fmt.Errorf("definition: file %s defines an empty wizard id", path)
			}
			if prev, exists := store.wizards[id]; exists {
				return fmt.Errorf("definition: duplicate wizard %q (files %s and %s)", id, prev.Source, path)
			}
			def.ID = id
			def.Source = path
			if err := check(def); err != nil {
				return err
			}
			store.wizards[id] = def
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

type documentFile struct {
	Wizards map[string]Definition `json:"wizards" yaml:"wizards"`
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("definition: file %s is empty", source)
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("definition: parse %s: %w", source, err)
	}
	return doc, nil
}

func check(def Definition) error {
	if len(def.Steps) == 0 {
		return fmt.Errorf("definition: wizard %q (file %s) has no steps", def.ID, def.Source)
	}
	if def.Upload.MaxBytes < 0 {
		return fmt.Errorf("definition: wizard %q (file %s) has a negative upload limit", def.ID, def.Source)
	}
	if _, err := wizard.New(def.Steps); err != nil {
		return fmt.Errorf("definition: wizard %q (file %s): %w", def.ID, def.Source, err)
	}
	key := def.StorageKey()
	for _, step := range def.Steps {
		for _, field := range step.Fields {
			if field.Name == key {
				return fmt.Errorf("definition: wizard %q (file %s) step %q declares storage key field %q", def.ID, def.Source, step.Key, key)
			}
		}
	}
	return nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
