// Package tokenizer turns source files into normalized token sequences.
package tokenizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/rs/zerolog/log"
)

// words and single non-space symbols
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// CodeParser strips comments by extension and splits the remaining text into
// lowercase tokens
type CodeParser struct{}

func NewCodeParser() *CodeParser {
	return &CodeParser{}
}

// Tokenize reads path and returns its tokens together with file metadata
func (p *CodeParser) Tokenize(ctx context.Context, path string) ([]string, models.Metadata, error) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := languages[ext]
	if !ok {
		return nil, models.Metadata{}, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}

	meta, err := FileMetadata(path)
	if err != nil {
		return nil, meta, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	tokens := Tokens(StripComments(string(content), lang.comments))
	meta.TokenCount = len(tokens)

	log.Debug().Str("path", path).Str("language", lang.name).Int("tokens", len(tokens)).Msg("File tokenized")
	return tokens, meta, nil
}

// FileMetadata describes path from its file system entry. Created time falls
// back to the modification time.
func FileMetadata(path string) (models.Metadata, error) {
	meta := models.Metadata{
		FileName: filepath.Base(path),
		FilePath: path,
		Language: DetectLanguage(path),
	}

	info, err := os.Stat(path)
	if err != nil {
		meta.Error = err.Error()
		return meta, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if info.IsDir() {
		meta.Error = "is a directory"
		return meta, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}

	meta.FileSize = info.Size()
	meta.CreatedTime = info.ModTime()
	meta.ModifiedTime = info.ModTime()
	return meta, nil
}

// StripComments removes every match of the given comment patterns in order
func StripComments(content string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		content = re.ReplaceAllString(content, "")
	}
	return content
}

// Tokens splits content into lowercase words and symbols
func Tokens(content string) []string {
	raw := tokenPattern.FindAllString(content, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tokens = append(tokens, strings.ToLower(tok))
	}
	return tokens
}
