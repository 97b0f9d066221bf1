// Package registry discovers GGUF model files and groups their quantization
// variants under a normalized model id.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"codebuddy/internal/common/fsutil"
	"codebuddy/pkg/types"
)

// quantSuffix matches a trailing llama.cpp quantization tag such as
// ".Q4_K_M", "-q8_0", "_IQ4_XS" or ".F16".
var quantSuffix = regexp.MustCompile(`(?i)[.\-_]((?:i?q[1-8](?:_[0-9a-z]+)*)|bf16|f16|f32)$`)

// LoadDir scans dir for *.gguf files. Dir may start with '~'.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		id, quant := ParseFileName(name)
		models = append(models, types.Model{
			ID:        id,
			Name:      name,
			Path:      filepath.Join(abs, name),
			Quant:     quant,
			SizeBytes: size,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// ParseFileName splits a GGUF file name into its normalized id and upper-case
// quantization tag. The tag is empty when none is present.
func ParseFileName(name string) (id, quant string) {
	stem := name
	if ext := filepath.Ext(stem); strings.EqualFold(ext, ".gguf") {
		stem = strings.TrimSuffix(stem, ext)
	}
	if m := quantSuffix.FindStringSubmatchIndex(stem); m != nil {
		quant = strings.ToUpper(stem[m[2]:m[3]])
		stem = stem[:m[0]]
	}
	return NormalizeID(stem), quant
}

// NormalizeID maps a hub identifier or file stem to a registry id:
// "meta-llama/CodeLlama-13b-Instruct-hf" becomes "codellama-13b-instruct".
func NormalizeID(modelID string) string {
	id := strings.TrimSpace(modelID)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	id = strings.ToLower(id)
	id = strings.TrimSuffix(id, ".gguf")
	id = strings.TrimSuffix(id, "-gguf")
	id = strings.TrimSuffix(id, "-hf")
	return id
}

// Index groups scanned models by id.
type Index struct {
	byID map[string][]types.Model
}

// NewIndex builds an index over models.
func NewIndex(models []types.Model) *Index {
	idx := &Index{byID: make(map[string][]types.Model)}
	for _, m := range models {
		idx.byID[m.ID] = append(idx.byID[m.ID], m)
	}
	return idx
}

// Variants returns every file for modelID, which may be a hub identifier.
func (x *Index) Variants(modelID string) []types.Model {
	if x == nil {
		return nil
	}
	v := x.byID[NormalizeID(modelID)]
	out := make([]types.Model, len(v))
	copy(out, v)
	return out
}

// Pick returns the first variant of modelID whose quantization tag appears in
// prefs, honoring the order of prefs.
func (x *Index) Pick(modelID string, prefs []string) (types.Model, bool) {
	variants := x.Variants(modelID)
	for _, want := range prefs {
		for _, m := range variants {
			if strings.EqualFold(m.Quant, want) {
				return m, true
			}
		}
	}
	return types.Model{}, false
}

// All returns every indexed model sorted by file name.
func (x *Index) All() []types.Model {
	if x == nil {
		return nil
	}
	var out []types.Model
	for _, v := range x.byID {
		out = append(out, v...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
