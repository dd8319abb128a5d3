package scrape

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// Converter turns article HTML into GitHub-flavored markdown.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a converter with the GitHub-flavored plugin and
// script/style/nav elements removed.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "noscript", "nav", "footer", "form", "iframe")
	return &Converter{converter: converter}
}

// Convert renders htmlContent as markdown.
func (c *Converter) Convert(htmlContent string) (string, error) {
	markdown, err := c.converter.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}
	return cleanMarkdown(markdown), nil
}

func cleanMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	markdown = strings.Join(lines, "\n")
	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}
