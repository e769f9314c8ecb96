package notion

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

var hexID = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// NormalizeID converts a page id in compact hex form, dashed form, or a page
// URL into the dashed lower-case form the API and the mapping store use.
func NormalizeID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", errors.NewError(errors.CodeValidation, "page id is empty", nil)
	}

	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = strings.TrimRight(u.Path, "/")
		if p := u.Query().Get("p"); p != "" {
			s = p
		}
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}

	if parsed, err := uuid.Parse(s); err == nil {
		return parsed.String(), nil
	}

	// Page slugs end in the compact id: "Title-Words-<32 hex>".
	compact := strings.ReplaceAll(s, "-", "")
	if len(compact) >= 32 {
		if tail := compact[len(compact)-32:]; hexID.MatchString(tail) {
			if parsed, err := uuid.Parse(tail); err == nil {
				return parsed.String(), nil
			}
		}
	}
	return "", errors.NewError(errors.CodeValidation, fmt.Sprintf("%q is not a page id", id), nil)
}

// PageURL returns the web address of a page.
func PageURL(id string) string {
	return "https://www.notion.so/" + strings.ReplaceAll(id, "-", "")
}
