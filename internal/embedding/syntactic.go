package embedding

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// topLevelTypes lists the tree-sitter node types a language treats as a
// chunk boundary: functions, methods, classes, and type declarations.
var topLevelTypes = map[string][]string{
	"go":         {"function_declaration", "method_declaration", "type_declaration"},
	"javascript": {"function_declaration", "class_declaration", "method_definition"},
	"typescript": {"function_declaration", "class_declaration", "interface_declaration", "method_definition"},
	"python":     {"function_definition", "class_definition"},
}

var languageOnce sync.Once
var tsLanguages map[string]*sitter.Language

func treeSitterLanguages() map[string]*sitter.Language {
	languageOnce.Do(func() {
		tsLanguages = map[string]*sitter.Language{
			"go":         golang.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"typescript": typescript.GetLanguage(),
			"python":     python.GetLanguage(),
		}
	})
	return tsLanguages
}

// Syntactic chunks source code along AST-defined boundaries (functions,
// methods, classes, type declarations), falling back to fixed windows for
// unrecognized languages or parse failures. Grounded on tree-sitter usage
// for code-aware chunk boundaries.
type Syntactic struct {
	tokenTarget int
	fallback    *Fixed
}

// NewSyntacticChunker builds a Syntactic chunker targeting tokenTarget
// tokens per chunk when a top-level node exceeds that size.
func NewSyntacticChunker(tokenTarget int) *Syntactic {
	return &Syntactic{tokenTarget: tokenTarget, fallback: NewFixedChunker(tokenTarget, 0)}
}

func (s *Syntactic) Strategy() storage.ChunkStrategy { return storage.StrategySyntactic }

func (s *Syntactic) Chunk(ctx context.Context, content string, language string) ([]ChunkSpan, error) {
	lang, ok := treeSitterLanguages()[strings.ToLower(language)]
	if !ok {
		return s.fallback.Chunk(ctx, content, language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return s.fallback.Chunk(ctx, content, language)
	}

	boundaryTypes := topLevelTypes[strings.ToLower(language)]
	var spans []ChunkSpan
	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		if !isBoundary(child.Type(), boundaryTypes) {
			continue
		}
		start, end := child.StartByte(), child.EndByte()
		if int(end) > len(source) || start >= end {
			continue
		}
		text := string(source[start:end])
		if estimateTokens(text) > s.tokenTarget {
			sub, err := s.fallback.Chunk(ctx, text, language)
			if err != nil {
				return nil, err
			}
			for _, ss := range sub {
				spans = append(spans, ChunkSpan{
					ByteStart: int(start) + ss.ByteStart,
					ByteEnd:   int(start) + ss.ByteEnd,
					Content:   ss.Content,
				})
			}
			continue
		}
		spans = append(spans, ChunkSpan{ByteStart: int(start), ByteEnd: int(end), Content: text})
	}

	if len(spans) == 0 {
		return s.fallback.Chunk(ctx, content, language)
	}
	for i := range spans {
		spans[i].Index = i
	}
	return spans, nil
}

func isBoundary(nodeType string, boundaryTypes []string) bool {
	for _, t := range boundaryTypes {
		if nodeType == t {
			return true
		}
	}
	return false
}
