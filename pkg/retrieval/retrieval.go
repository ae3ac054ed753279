// Package retrieval selects reference circuit examples for prompt grounding.
//
// Generation quality depends heavily on showing the model complete, valid
// examples of the target language. The index is built once over a corpus of
// .ord example files and queried per request with the user's circuit
// description; scoring is lexical keyword overlap, which is cheap,
// deterministic, and easily good enough for a corpus of dozens of examples.
package retrieval

import (
	"embed"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ordlab/ordpilot/pkg/errors"
)

//go:embed examples/*.ord
var builtinFS embed.FS

// Example is one reference circuit in the corpus.
type Example struct {
	// Name is the file stem, e.g. "diffpair".
	Name string
	// Description is the leading comment block of the file, used for
	// scoring alongside the name.
	Description string
	// Source is the full file content.
	Source string
}

// Index is an immutable example corpus ready for querying.
// Build once, query from any goroutine.
type Index struct {
	examples []Example
	tokens   []map[string]int
}

// NewIndex builds an index over the given examples.
func NewIndex(examples []Example) *Index {
	ix := &Index{examples: examples}
	for _, ex := range examples {
		ix.tokens = append(ix.tokens, tokenize(ex.Name+" "+ex.Description))
	}
	return ix
}

// LoadBuiltin indexes the example corpus compiled into the binary.
func LoadBuiltin() (*Index, error) {
	return loadFS(builtinFS, "examples")
}

// LoadDir indexes all .ord files under dir, replacing the builtin corpus.
func LoadDir(dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeIndexNotFound, "example directory %s not found", dir)
	}
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (*Index, error) {
	var examples []Example
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".ord") {
			return err
		}
		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		source := string(content)
		examples = append(examples, Example{
			Name:        strings.TrimSuffix(filepath.Base(path), ".ord"),
			Description: leadingComment(source),
			Source:      source,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexNotFound, err, "loading example corpus")
	}
	if len(examples) == 0 {
		return nil, errors.New(errors.ErrCodeIndexNotFound, "example corpus is empty")
	}
	// Deterministic order regardless of walk order.
	sort.Slice(examples, func(i, j int) bool { return examples[i].Name < examples[j].Name })
	return NewIndex(examples), nil
}

// Len reports the corpus size.
func (ix *Index) Len() int { return len(ix.examples) }

// Examples returns the full corpus in name order.
func (ix *Index) Examples() []Example { return ix.examples }

// Query returns the k examples most relevant to the description, best
// first. Examples with no token overlap at all are omitted; if nothing
// overlaps, the first k examples are returned so prompts always carry at
// least one complete reference.
func (ix *Index) Query(description string, k int) []Example {
	if k <= 0 || len(ix.examples) == 0 {
		return nil
	}

	query := tokenize(description)
	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, toks := range ix.tokens {
		if s := overlapScore(query, toks); s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]Example, 0, k)
	for _, r := range ranked {
		if len(out) == k {
			return out
		}
		out = append(out, ix.examples[r.idx])
	}
	for _, ex := range ix.examples {
		if len(out) == k {
			break
		}
		if !containsExample(out, ex.Name) {
			out = append(out, ex)
		}
	}
	return out
}

func containsExample(examples []Example, name string) bool {
	for _, ex := range examples {
		if ex.Name == name {
			return true
		}
	}
	return false
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are tokens too generic to signal relevance in a circuit
// description.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "circuit": true, "design": true,
	"for": true, "in": true, "me": true, "of": true, "or": true,
	"please": true, "schematic": true, "the": true, "to": true,
	"with": true,
}

func tokenize(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	return counts
}

// overlapScore is cosine-style overlap between two token bags.
func overlapScore(query, doc map[string]int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	hits := 0
	for w, n := range query {
		if dn, ok := doc[w]; ok {
			hits += n * dn
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / (math.Sqrt(float64(len(query))) * math.Sqrt(float64(len(doc))))
}

// leadingComment collects the file's initial comment block, skipping the
// version header line.
func leadingComment(source string) string {
	var lines []string
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			break
		}
		text := strings.TrimSpace(strings.TrimLeft(line, "# "))
		if strings.Contains(strings.ToLower(text), "version:") {
			continue
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, " ")
}
