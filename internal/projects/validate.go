package projects

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const placeholderPrefix = "PLACEHOLDER_"

var startDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidationResult collects catalog problems by severity.
type ValidationResult struct {
	Errors   []string
	Warnings []string
	Info     []string
}

// Valid reports whether there are no errors. Warnings do not invalidate a catalog.
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Clean reports whether there is nothing at all to report.
func (r ValidationResult) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0 && len(r.Info) == 0
}

// Validate checks start dates, placeholder keys and status/key consistency.
func Validate(c *Catalog) ValidationResult {
	var res ValidationResult
	keyOwners := make(map[string][]string)

	for _, p := range c.projects {
		name := p.Name
		if name == "" {
			name = p.ID
		}

		switch {
		case p.StartDate == "":
			res.Errors = append(res.Errors, fmt.Sprintf("%s: missing start date", name))
		case !startDateRe.MatchString(p.StartDate):
			res.Errors = append(res.Errors, fmt.Sprintf("%s: invalid start date format, expected YYYY-MM-DD, got %s", name, p.StartDate))
		}

		if strings.HasPrefix(p.Repo, placeholderPrefix) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: repository key is still a placeholder", name))
		}

		if p.Tracked() {
			if p.Repo == "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: status is %q but no repository key is configured", name, p.Status))
			}
		} else if p.Repo != "" && !strings.HasSuffix(p.Repo, "-soon") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: status is %q but repository %s is configured, its stats will not be shown as live", name, p.Status, p.Repo))
		}

		if p.Repo != "" {
			keyOwners[p.Repo] = append(keyOwners[p.Repo], p.ID)
		}
	}

	for _, p := range c.projects {
		owners := keyOwners[p.Repo]
		if len(owners) > 1 && owners[0] == p.ID {
			res.Info = append(res.Info, fmt.Sprintf("%s is shared by projects %s", p.Repo, strings.Join(owners, ", ")))
		}
	}
	return res
}

// LogValidation writes the result through the global logger.
func LogValidation(r ValidationResult) {
	for _, e := range r.Errors {
		log.Error().Str("check", "catalog").Msg(e)
	}
	for _, w := range r.Warnings {
		log.Warn().Str("check", "catalog").Msg(w)
	}
	for _, i := range r.Info {
		log.Info().Str("check", "catalog").Msg(i)
	}
	if r.Clean() {
		log.Info().Str("check", "catalog").Msg("project catalog is complete and valid")
	}
}
