package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Claim is a single assertion to be validated against evidence.
type Claim struct {
	ClaimID     string   `yaml:"id" json:"claim_id"`
	DisplayName string   `yaml:"name" json:"display_name"`
	Statement   string   `yaml:"statement" json:"statement"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Context is free-text background given to providers alongside the
	// statement (what product, what timeframe, what was measured).
	Context string `yaml:"context,omitempty" json:"context,omitempty"`

	// Expected is the verdict this claim should receive ("supported" or
	// "refuted"). When set, a trial only passes if the consensus verdict
	// matches. When empty, "supported" is assumed.
	Expected Verdict `yaml:"expected,omitempty" json:"expected,omitempty"`

	// Providers restricts scoring to a subset of the spec's providers.
	Providers []string `yaml:"providers,omitempty" json:"providers,omitempty"`

	TimeoutSec *int  `yaml:"timeout_seconds,omitempty" json:"timeout_sec,omitempty"`
	Active     *bool `yaml:"active,omitempty" json:"active,omitempty"`
}

// Name returns the display name, defaulting to the claim ID.
func (c *Claim) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ClaimID
}

// ExpectedVerdict returns the verdict the claim must reach to pass.
func (c *Claim) ExpectedVerdict() Verdict {
	if c.Expected == "" {
		return VerdictSupported
	}
	return c.Expected
}

// Validate checks claim fields that cannot be defaulted.
func (c *Claim) Validate() error {
	if strings.TrimSpace(c.Statement) == "" {
		return errors.New("claim statement must not be empty")
	}
	switch c.Expected {
	case "", VerdictSupported, VerdictRefuted:
	default:
		return fmt.Errorf("expected verdict %q is not valid (must be supported or refuted)", c.Expected)
	}
	return nil
}

// LoadClaim loads a claim from a YAML file or a Markdown file with YAML
// frontmatter. For Markdown, the statement is the document body.
func LoadClaim(path string) (*Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var claim *Claim
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		claim, err = parseMarkdownClaim(data)
	default:
		claim, err = parseYAMLClaim(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing claim %s: %w", path, err)
	}

	if claim.ClaimID == "" {
		claim.ClaimID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if claim.DisplayName == "" {
		claim.DisplayName = claim.ClaimID
	}

	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("invalid claim %s: %w", path, err)
	}
	return claim, nil
}

func parseYAMLClaim(data []byte) (*Claim, error) {
	var claim Claim
	if err := yaml.Unmarshal(data, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// parseMarkdownClaim splits YAML frontmatter (delimited by ---) from the
// Markdown body and extracts the plain-text statement from the body.
func parseMarkdownClaim(data []byte) (*Claim, error) {
	content := string(data)

	var claim Claim
	body := content

	if strings.HasPrefix(content, "---") {
		rest := content[3:]
		if strings.HasPrefix(rest, "\r\n") {
			rest = rest[2:]
		} else if strings.HasPrefix(rest, "\n") {
			rest = rest[1:]
		}

		idx := strings.Index(rest, "\n---")
		if idx < 0 {
			return nil, errors.New("closing frontmatter delimiter not found")
		}

		if err := yaml.Unmarshal([]byte(rest[:idx]), &claim); err != nil {
			return nil, fmt.Errorf("parsing frontmatter: %w", err)
		}

		body = rest[idx+len("\n---"):]
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
	}

	if claim.Statement == "" {
		claim.Statement = markdownText([]byte(body))
	}
	return &claim, nil
}

// markdownText renders a Markdown body down to plain text, one line per
// block, so headings and formatting don't leak into the prompt.
func markdownText(source []byte) string {
	md := goldmark.New()
	reader := gmtext.NewReader(source)
	doc := md.Parser().Parse(reader)

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			var sb strings.Builder
			collectText(n, source, &sb)
			if text := strings.TrimSpace(sb.String()); text != "" {
				blocks = append(blocks, text)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

func collectText(n ast.Node, source []byte, sb *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			continue
		}
		collectText(c, source, sb)
	}
}
