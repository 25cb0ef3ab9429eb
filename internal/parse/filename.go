package parse

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	extRe    = regexp.MustCompile(`\.([A-Za-z0-9]{1,8})\s*$`)
	unsafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashesRe = regexp.MustCompile(`-{2,}`)
)

// imageExtAliases folds equivalent spellings so stored names stay uniform.
var imageExtAliases = map[string]string{
	"jpeg": "jpg",
	"jpe":  "jpg",
	"tif":  "tiff",
}

// Stem returns a URL-safe version of the file name without its extension.
func Stem(raw string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	if loc := extRe.FindStringIndex(base); loc != nil && loc[0] > 0 {
		base = base[:loc[0]]
	}
	base = strings.ReplaceAll(base, " ", "-")
	base = unsafeRe.ReplaceAllString(base, "-")
	base = dashesRe.ReplaceAllString(base, "-")
	return strings.Trim(strings.ToLower(base), "-.")
}

const maxStemLen = 40

// ObjectName builds a collision-free object path for an upload: prefix, a random id,
// a readable stem taken from the client name and ext. The client's own extension is
// never used, so the stored name always matches the detected content type.
func ObjectName(prefix, clientName, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if alias, ok := imageExtAliases[ext]; ok {
		ext = alias
	}
	name := uuid.NewString()
	if prefix != "" {
		name = strings.TrimSuffix(prefix, "-") + "-" + name
	}
	if stem := Stem(clientName); stem != "" {
		if len(stem) > maxStemLen {
			stem = strings.TrimRight(stem[:maxStemLen], "-.")
		}
		name += "-" + stem
	}
	if ext != "" {
		name += "." + ext
	}
	return name
}
