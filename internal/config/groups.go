package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/eddiefleurent/portfolio_digest/internal/filter"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	yaml "gopkg.in/yaml.v3"
)

// ErrNoGroupConfig is returned when the recipient-group file does not exist.
var ErrNoGroupConfig = errors.New("recipient group config not found")

// Group defaults
const (
	DefaultSubject = "Daily Update"
)

// DefaultInclude is used for groups that list no sections.
var DefaultInclude = []string{models.SectionSummary}

type groupsFile struct {
	Groups []models.RecipientGroup `yaml:"groups"`
}

// LoadGroups reads the recipient-group file. Groups keep their declared order
// and get the default subject and include list when those are unset.
//
// Problems that do not stop a run, such as symbol patterns that are not valid
// regular expressions, come back as warnings.
func LoadGroups(path string) ([]models.RecipientGroup, []string, error) {
	if path == "" {
		path = "notify.yaml"
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is a user-provided config file path
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNoGroupConfig)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading group config: %w", err)
	}

	var file groupsFile
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("parsing group config: %w", err)
	}

	var warnings []string
	known := make(map[string]bool, len(models.Sections))
	for _, s := range models.Sections {
		known[s] = true
	}

	for i := range file.Groups {
		g := &file.Groups[i]
		if strings.TrimSpace(g.Subject) == "" {
			g.Subject = DefaultSubject
		}
		if len(g.Include) == 0 {
			g.Include = append([]string(nil), DefaultInclude...)
		}
		for _, s := range g.Include {
			if !known[s] {
				warnings = append(warnings, fmt.Sprintf("group %s: unknown section %q is ignored", g.DisplayName(), s))
			}
		}
		if g.Filters != nil {
			for _, p := range filter.InvalidPatterns(g.Filters.Symbols) {
				warnings = append(warnings, fmt.Sprintf("group %s: symbol pattern %q is not a valid regular expression; matching it literally", g.DisplayName(), p))
			}
		}
		if len(g.To) == 0 {
			warnings = append(warnings, fmt.Sprintf("group %s: no recipients", g.DisplayName()))
		}
	}

	return file.Groups, warnings, nil
}

// SelectGroups keeps the groups whose names are listed, in declared order.
// An empty names list selects every group.
func SelectGroups(groups []models.RecipientGroup, names []string) []models.RecipientGroup {
	if len(names) == 0 {
		return groups
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]models.RecipientGroup, 0, len(names))
	for _, g := range groups {
		if want[g.Name] {
			out = append(out, g)
		}
	}
	return out
}
