package tokenizer

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type language struct {
	name     string
	comments []*regexp.Regexp
}

var (
	hashComments  = regexp.MustCompile(`(?m)#.*$`)
	slashComments = regexp.MustCompile(`(?m)//.*$`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
	pythonDocs    = regexp.MustCompile(`(?s)""".*?"""|'''.*?'''`)
	rubyBlockDocs = regexp.MustCompile(`(?ms)^=begin.*?^=end`)
	cLikeComments = []*regexp.Regexp{blockComments, slashComments}
)

// block comments are stripped before line comments
var languages = map[string]language{
	".py":   {name: "Python", comments: []*regexp.Regexp{pythonDocs, hashComments}},
	".java": {name: "Java", comments: cLikeComments},
	".cpp":  {name: "C++", comments: cLikeComments},
	".c":    {name: "C", comments: cLikeComments},
	".h":    {name: "C/C++ Header", comments: cLikeComments},
	".js":   {name: "JavaScript", comments: cLikeComments},
	".ts":   {name: "TypeScript", comments: cLikeComments},
	".rb":   {name: "Ruby", comments: []*regexp.Regexp{rubyBlockDocs, hashComments}},
}

// DetectLanguage names the language of path by extension, or "Unknown"
func DetectLanguage(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang.name
	}
	return "Unknown"
}

// IsSupported reports whether path has a tokenizable extension
func IsSupported(path string) bool {
	_, ok := languages[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists the supported extensions in ascending order
func Extensions() []string {
	exts := make([]string, 0, len(languages))
	for ext := range languages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
