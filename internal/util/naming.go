package util

import (
	"strings"
	"unicode/utf8"

	"github.com/sevigo/pixel-warden/internal/core"
)

const maxStatusContextLength = 255

// StatusContext returns the commit status context of a build. Builds keep one context
// per name, so re-reporting a build replaces its previous status instead of adding one.
func StatusContext(prefix, buildName string) string {
	name := strings.TrimSpace(buildName)
	context := prefix
	if name != "" && name != core.DefaultBuildName {
		context = prefix + "/" + name
	}
	if len(context) > maxStatusContextLength {
		cut := maxStatusContextLength
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		context = context[:cut]
	}
	return context
}
