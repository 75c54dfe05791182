package ohss

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/ohss-collector/internal/model"
)

// kindKeywords is evaluated in order; the first set with a keyword present
// in the folded text decides the kind.
var kindKeywords = []struct {
	kind     model.EntityKind
	keywords []string
}{
	{model.KindArrests, []string{"arrest", "apprehension"}},
	{model.KindDetentions, []string{"detention", "facility"}},
	{model.KindRemovals, []string{"removal", "deportation", "return"}},
}

// Classify infers the entity kind of a data file from its link text and URL.
func Classify(text, url string) model.EntityKind {
	combined := fold(text + " " + url)
	for _, set := range kindKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(combined, kw) {
				return set.kind
			}
		}
	}
	return model.KindUnknown
}

// fold case-folds s. A Caser is not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}
