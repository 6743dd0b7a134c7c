// Package casefile parses case briefs: Markdown with YAML frontmatter and a
// bullet list of evidence.
//
//	---
//	title: The Fall of the Wall
//	headline: Berlin Wall Tumbles
//	difficulty: Moderate
//	---
//	Analyze the causes that led to the collapse of the Berlin Wall in 1989.
//
//	- [e1] Economic problems in East Germany
//	- Gorbachev's Reforms (1985)
package casefile

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/casemap/internal/models"
)

var evidenceIDRe = regexp.MustCompile(`^\[([A-Za-z0-9_-]+)\]\s*`)

type frontmatter struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Headline    string `yaml:"headline"`
	Description string `yaml:"description"`
	Difficulty  string `yaml:"difficulty"`
}

// Parse builds the case stored under id from raw Markdown. A frontmatter id,
// when present, must equal id.
func Parse(id string, data []byte) (*models.Case, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("casefile: %s: %w", id, err)
	}
	if fm.ID != "" && fm.ID != id {
		return nil, fmt.Errorf("casefile: %s: frontmatter id %q does not match", id, fm.ID)
	}

	c := &models.Case{
		ID:          id,
		Title:       fm.Title,
		Headline:    fm.Headline,
		Description: fm.Description,
		Difficulty:  fm.Difficulty,
	}
	prose, evidence := splitBody(body)
	if c.Title == "" {
		c.Title = firstHeading(body)
	}
	if c.Headline == "" {
		c.Headline = c.Title
	}
	if c.Description == "" {
		c.Description = prose
	}
	if c.Headline == "" {
		return nil, fmt.Errorf("casefile: %s: missing headline", id)
	}
	c.Evidence = evidence
	return c, nil
}

// splitFrontmatter separates YAML frontmatter between leading --- lines from
// the body. Content without frontmatter is all body.
func splitFrontmatter(data []byte) (frontmatter, string, error) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), nil
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data), nil
	}

	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return fm, "", fmt.Errorf("frontmatter: %w", err)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body, nil
}

// splitBody returns the prose paragraphs (headings excluded) and the bullet
// items in order. Bullets without an explicit [id] are numbered e1, e2, ...
func splitBody(body string) (string, []models.Evidence) {
	var (
		prose    []string
		evidence []models.Evidence
	)
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			text := strings.TrimSpace(trimmed[2:])
			if text == "" {
				continue
			}
			id := "e" + strconv.Itoa(len(evidence)+1)
			if m := evidenceIDRe.FindStringSubmatch(text); m != nil {
				id = m[1]
				text = strings.TrimSpace(text[len(m[0]):])
			}
			evidence = append(evidence, models.Evidence{ID: id, Text: text})
		case strings.HasPrefix(trimmed, "#"):
		case trimmed != "":
			prose = append(prose, trimmed)
		}
	}
	return strings.Join(prose, " "), evidence
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
