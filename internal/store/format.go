package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"hist-go/internal/hist"
)

// historyFile is the on-disk envelope of one history (schema 2).
type historyFile struct {
	SchemaVersion int            `json:"schemaVersion"`
	Path          string         `json:"path"`
	Versions      []hist.Version `json:"versions"`
}

// legacyVersion is an element of a schema 1 history, which was a bare JSON
// array and named the path field "fileName".
type legacyVersion struct {
	hist.Version
	FileName string `json:"fileName,omitempty"`
}

// decodeHistory parses a history file of any supported schema.
func decodeHistory(data []byte) ([]hist.Version, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	var versions []hist.Version
	switch trimmed[0] {
	case '[':
		var legacy []legacyVersion
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("parsing schema 1 history: %w", err)
		}
		versions = make([]hist.Version, len(legacy))
		for i, lv := range legacy {
			versions[i] = lv.Version
			if versions[i].Path == "" {
				versions[i].Path = lv.FileName
			}
		}
	case '{':
		var hf historyFile
		if err := json.Unmarshal(trimmed, &hf); err != nil {
			return nil, fmt.Errorf("parsing history: %w", err)
		}
		if hf.SchemaVersion < 2 || hf.SchemaVersion > hist.SchemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d", hf.SchemaVersion)
		}
		versions = hf.Versions
	default:
		return nil, fmt.Errorf("unexpected top-level value")
	}

	for i := range versions {
		if versions[i].Kind == "" {
			versions[i].Kind = hist.KindSnapshot
		}
	}
	if versions == nil {
		versions = []hist.Version{}
	}
	return versions, nil
}

// encodeHistory renders a schema 2 history, indented by two spaces.
func encodeHistory(relPath string, versions []hist.Version) ([]byte, error) {
	if versions == nil {
		versions = []hist.Version{}
	}
	data, err := json.MarshalIndent(historyFile{
		SchemaVersion: hist.SchemaVersion,
		Path:          relPath,
		Versions:      versions,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
