package transcript

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MarkupPolicy decides how bot text containing inline markup is shown.
type MarkupPolicy string

const (
	// MarkupSanitized strips control sequences, keeps only the inline
	// allow-list and renders it.
	MarkupSanitized MarkupPolicy = "sanitized"
	// MarkupTrusted renders server markup as received.
	MarkupTrusted MarkupPolicy = "trusted"
	// MarkupPlain shows the text literally.
	MarkupPlain MarkupPolicy = "plain"
)

func ParseMarkupPolicy(s string) (MarkupPolicy, error) {
	switch p := MarkupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MarkupSanitized, MarkupTrusted, MarkupPlain:
		return p, nil
	case "":
		return MarkupSanitized, nil
	default:
		return "", fmt.Errorf("unknown markup policy %q", s)
	}
}

var allowedElements = []string{"b", "strong", "i", "em", "u", "br", "p", "ul", "ol", "li"}

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	return p
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

type formatter struct {
	policy    MarkupPolicy
	sanitizer *bluemonday.Policy
}

func newFormatter(policy MarkupPolicy) *formatter {
	if policy == "" {
		policy = MarkupSanitized
	}
	return &formatter{policy: policy, sanitizer: newSanitizer()}
}

// Format turns one message into terminal text under the formatter's policy.
func (f *formatter) Format(text string) string {
	switch f.policy {
	case MarkupPlain:
		return strings.TrimSpace(stripControls(text))
	case MarkupTrusted:
		return renderMarkup(text, false)
	default:
		return renderMarkup(f.sanitizer.Sanitize(stripControls(text)), true)
	}
}

// stripControls removes escape sequences and every remaining control
// character except newline and tab.
func stripControls(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, ansi.Strip(s))
}

type listLevel struct {
	ordered bool
	n       int
}

// renderMarkup walks the token stream and maps the inline elements onto
// lipgloss styles. Unknown tags are dropped and their text kept. With
// strip set, control characters are removed from every decoded text token;
// entities such as &#27; only turn into control bytes at this point.
func renderMarkup(s string, strip bool) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var (
		b                       strings.Builder
		bold, italic, underline int
		lists                   []listLevel
	)

	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				// malformed input: fall back to the raw text
				if strip {
					s = stripControls(s)
				}
				return strings.TrimSpace(s)
			}
			lines := strings.Split(b.String(), "\n")
			for i := range lines {
				lines[i] = strings.TrimRight(lines[i], " ")
			}
			out := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
			return strings.Trim(out, "\n ")

		case html.TextToken:
			raw := string(z.Text())
			if strip {
				raw = stripControls(raw)
			}
			text := collapseSpace(raw)
			if text == "" {
				continue
			}
			if strings.HasSuffix(b.String(), "\n") || b.Len() == 0 {
				text = strings.TrimLeft(text, " ")
			}
			style := lipgloss.NewStyle().Bold(bold > 0).Italic(italic > 0).Underline(underline > 0)
			if bold+italic+underline > 0 {
				text = style.Render(text)
			}
			b.WriteString(text)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "strong":
				bold++
			case "i", "em":
				italic++
			case "u":
				underline++
			case "br":
				b.WriteString("\n")
			case "p":
				newline()
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			case "ul", "ol":
				newline()
				lists = append(lists, listLevel{ordered: string(name) == "ol"})
			case "li":
				newline()
				indent := strings.Repeat("  ", maxInt(0, len(lists)-1))
				if n := len(lists); n > 0 && lists[n-1].ordered {
					lists[n-1].n++
					b.WriteString(fmt.Sprintf("%s%d. ", indent, lists[n-1].n))
				} else {
					b.WriteString(indent + "• ")
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "strong":
				bold = maxInt(0, bold-1)
			case "i", "em":
				italic = maxInt(0, italic-1)
			case "u":
				underline = maxInt(0, underline-1)
			case "p":
				b.WriteString("\n\n")
			case "ul", "ol":
				if len(lists) > 0 {
					lists = lists[:len(lists)-1]
				}
				newline()
			case "li":
				newline()
			}
		}
	}
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t'
	out := strings.Join(strings.Fields(s), " ")
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
