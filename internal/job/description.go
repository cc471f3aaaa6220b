package job

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"extractor/internal/rules"
)

// descriptionDoc is the on-disk TOML shape of a job description.
type descriptionDoc struct {
	Title      string       `toml:"title"`
	From       time.Time    `toml:"from"`
	To         time.Time    `toml:"to"`
	Publisher  string       `toml:"publisher"`
	StreamType string       `toml:"streamType"`
	DataFormat string       `toml:"dataFormat"`
	Rules      []rules.Rule `toml:"rules"`
}

// LoadDescription reads a TOML job description, applies defaults, and
// validates it.
//
//	title = "Election Week"
//	from = 2024-11-01T00:00:00Z
//	to = 2024-11-08T00:00:00Z
//
//	[[rules]]
//	value = "vote OR election"
//	tag = "core"
func LoadDescription(path string) (*Job, error) {
	var doc descriptionDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse job description %s: %w", path, err)
	}

	set, err := rules.FromRules(doc.Rules)
	if err != nil {
		return nil, err
	}

	j := &Job{
		Title:      doc.Title,
		FromDate:   doc.From,
		ToDate:     doc.To,
		Publisher:  doc.Publisher,
		StreamType: doc.StreamType,
		DataFormat: doc.DataFormat,
		Rules:      set,
	}
	j.ApplyDefaults()
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}
