package ssr

import (
	"strings"

	"github.com/grafana/regexp"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// identifierPattern matches one dot-separated segment of a component name:
// a JavaScript identifier optionally followed by bracketed indexes such as
// [0] or ["key"].
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_$][0-9a-zA-Z_$]*(?:\[(?:".+"|'.+'|\d+)\])*?$`)

const identifierCacheSize = 4096

// Long-running processes validate the same handful of names over and over.
var identifierCache = func() *lru.Cache[string, bool] {
	c, err := lru.New[string, bool](identifierCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}()

// ValidateIdentifier checks that name is a dotted path of JavaScript
// identifiers, e.g. "App.Widget" or "Components[0]". Component names are
// spliced into engine expressions, so anything else is rejected before the
// engine sees it.
func ValidateIdentifier(name string) error {
	valid, ok := identifierCache.Get(name)
	if !ok {
		valid = isValidIdentifier(name)
		identifierCache.Add(name, valid)
	}
	if !valid {
		return errors.Wrapf(ErrInvalidComponent, "component %q", name)
	}
	return nil
}

func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, ".") {
		if !identifierPattern.MatchString(segment) {
			return false
		}
	}
	return true
}

var containerTagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// Container ids are written into an attribute and into a JavaScript string
// literal; classes into an attribute. Neither is escaped.
const unsafeContainerChars = "\"'<>&\\\n\r"

func validateContainer(id, tag, class string) error {
	if !containerTagPattern.MatchString(tag) {
		return errors.Wrapf(ErrInvalidContainer, "tag %q", tag)
	}
	if strings.ContainsAny(id, unsafeContainerChars) {
		return errors.Wrapf(ErrInvalidContainer, "id %q", id)
	}
	if strings.ContainsAny(class, unsafeContainerChars) {
		return errors.Wrapf(ErrInvalidContainer, "class %q", class)
	}
	return nil
}
