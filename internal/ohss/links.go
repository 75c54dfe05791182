// Package ohss discovers, classifies, and imports the monthly enforcement
// tables published on the DHS Office of Homeland Security Statistics portal.
package ohss

import (
	"bytes"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/ohss-collector/internal/fetcher"
	"github.com/sells-group/ohss-collector/internal/model"
)

// DiscoverLinks scans every anchor on a listing page and returns references
// to tabular data files in order of appearance. A page without qualifying
// links yields an empty slice.
func DiscoverLinks(page []byte, baseURL string) ([]model.DataFileReference, error) {
	refs := []model.DataFileReference{}
	z := html.NewTokenizer(bytes.NewReader(page))

	var (
		inAnchor bool
		href     string
		text     strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, eris.Wrap(err, "ohss: tokenize listing page")
			}
			return refs, nil

		case html.StartTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			inAnchor, href = true, attr(tok, "href")
			text.Reset()

		case html.TextToken:
			if inAnchor {
				text.Write(z.Text())
				text.WriteByte(' ')
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A || !inAnchor {
				continue
			}
			inAnchor = false
			if ref, ok := newReference(href, text.String(), baseURL); ok {
				refs = append(refs, ref)
			}
		}
	}
}

func newReference(href, rawText, baseURL string) (model.DataFileReference, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return model.DataFileReference{}, false
	}
	if _, ok := fetcher.FormatOf(href); !ok {
		return model.DataFileReference{}, false
	}

	abs := ResolveURL(baseURL, href)
	text := strings.Join(strings.Fields(rawText), " ")

	period, ok := ExtractPeriod(text)
	if !ok {
		period, _ = ExtractPeriod(abs)
	}
	return model.DataFileReference{
		URL:            abs,
		DisplayText:    text,
		Kind:           Classify(text, abs),
		InferredPeriod: period,
	}, true
}

// ResolveURL makes href absolute against base. Targets that already carry an
// http(s) scheme are returned unchanged; root-relative targets are prefixed
// with base; anything else is joined with a slash.
func ResolveURL(base, href string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
