// Package layout turns positioned text fragments into reading-order text. It handles
// single pages split into two columns and flags side-by-side bilingual content.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/athro-ingest/internal/domain"
)

const NoTextPlaceholder = "[No text content detected on this page]"

// Config holds the empirically chosen layout thresholds. All of them are tunable.
type Config struct {
	Midline            float64 `yaml:"midline"`
	MinBlocksPerColumn int     `yaml:"minBlocksPerColumn"`
	RowEpsilon         float64 `yaml:"rowEpsilon"`
	SimilarityCeiling  float64 `yaml:"similarityCeiling"`
	MinBilingualWords  int     `yaml:"minBilingualWords"`
	SimilarLengthRatio float64 `yaml:"similarLengthRatio"`
}

func DefaultConfig() Config {
	return Config{
		Midline:            0.5,
		MinBlocksPerColumn: 2,
		RowEpsilon:         0.01,
		SimilarityCeiling:  0.8,
		MinBilingualWords:  10,
		SimilarLengthRatio: 0.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Midline <= 0 || c.Midline >= 1 {
		c.Midline = d.Midline
	}
	if c.MinBlocksPerColumn <= 0 {
		c.MinBlocksPerColumn = d.MinBlocksPerColumn
	}
	if c.RowEpsilon <= 0 {
		c.RowEpsilon = d.RowEpsilon
	}
	if c.SimilarityCeiling <= 0 || c.SimilarityCeiling > 1 {
		c.SimilarityCeiling = d.SimilarityCeiling
	}
	if c.MinBilingualWords <= 0 {
		c.MinBilingualWords = d.MinBilingualWords
	}
	if c.SimilarLengthRatio <= 0 || c.SimilarLengthRatio >= 1 {
		c.SimilarLengthRatio = d.SimilarLengthRatio
	}
	return c
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.withDefaults()}
}

func (a *Analyzer) Config() Config { return a.cfg }

// Page is the input for one rendered page. An empty Blocks slice renders the
// no-text placeholder.
type Page struct {
	Number int
	Blocks []domain.TextBlock
}

// DocumentLayout is the rendered text plus per-document layout stats.
type DocumentLayout struct {
	Text           string
	Pages          int
	TextPages      int
	TwoColumnPages int
	BilingualPages int
}

// HasText reports whether any page produced real text (placeholders excluded).
func (d DocumentLayout) HasText() bool { return d.TextPages > 0 }

// Rows groups blocks into visual rows: ascending Top, blocks whose Top is within
// RowEpsilon of the row's first block share the row and are ordered by Left.
func (a *Analyzer) Rows(blocks []domain.TextBlock) [][]domain.TextBlock {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]domain.TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.Top < sorted[j].BoundingBox.Top
	})

	var rows [][]domain.TextBlock
	var cur []domain.TextBlock
	rowTop := 0.0
	for _, b := range sorted {
		if len(cur) > 0 && b.BoundingBox.Top-rowTop >= a.cfg.RowEpsilon {
			rows = append(rows, cur)
			cur = nil
		}
		if len(cur) == 0 {
			rowTop = b.BoundingBox.Top
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		rows = append(rows, cur)
	}
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool {
			return r[i].BoundingBox.Left < r[j].BoundingBox.Left
		})
	}
	return rows
}

// SortBlocks returns blocks in reading order (row by row, left to right).
func (a *Analyzer) SortBlocks(blocks []domain.TextBlock) []domain.TextBlock {
	out := make([]domain.TextBlock, 0, len(blocks))
	for _, r := range a.Rows(blocks) {
		out = append(out, r...)
	}
	return out
}

// Split partitions one page's blocks around the midline and runs bilingual
// detection on two-column pages.
func (a *Analyzer) Split(blocks []domain.TextBlock) domain.ColumnSplit {
	var split domain.ColumnSplit
	for _, b := range a.SortBlocks(blocks) {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		if b.BoundingBox.CenterX() < a.cfg.Midline {
			split.LeftBlocks = append(split.LeftBlocks, b)
		} else {
			split.RightBlocks = append(split.RightBlocks, b)
		}
	}
	split.IsTwoColumn = len(split.LeftBlocks) > a.cfg.MinBlocksPerColumn &&
		len(split.RightBlocks) > a.cfg.MinBlocksPerColumn
	if !split.IsTwoColumn {
		return split
	}
	left := joinFlat(split.LeftBlocks)
	right := joinFlat(split.RightBlocks)
	if a.IsBilingual(left, right) {
		split.IsBilingual = true
		split.Alignment = AlignSentences(left, right)
	}
	return split
}

// IsBilingual reports whether two column texts look like a translation pair:
// similar length, lexically different, and both long enough to judge.
func (a *Analyzer) IsBilingual(left, right string) bool {
	lw := len(strings.Fields(left))
	rw := len(strings.Fields(right))
	if lw <= a.cfg.MinBilingualWords || rw <= a.cfg.MinBilingualWords {
		return false
	}
	small, large := lw, rw
	if small > large {
		small, large = large, small
	}
	if float64(small) <= float64(large)*a.cfg.SimilarLengthRatio {
		return false
	}
	return Similarity(left, right) < a.cfg.SimilarityCeiling
}

// Similarity is the Jaccard overlap of the two texts' lowercased word sets.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[f] = true
	}
	return out
}

// SplitSentences cuts on sentence-ending punctuation followed by whitespace or
// end of text. The punctuation stays with its sentence.
func SplitSentences(s string) []string {
	runes := []rune(strings.TrimSpace(s))
	var out []string
	start := 0
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !isSentenceEnd(runes[i+1]) {
			continue
		}
		if i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			continue
		}
		if sent := strings.TrimSpace(string(runes[start : i+1])); sent != "" {
			out = append(out, sent)
		}
		start = i + 1
	}
	if start < len(runes) {
		if sent := strings.TrimSpace(string(runes[start:])); sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	default:
		return false
	}
}

// AlignSentences zips the two texts sentence by sentence, padding the shorter side.
func AlignSentences(left, right string) []domain.AlignedRow {
	ls := SplitSentences(left)
	rs := SplitSentences(right)
	n := len(ls)
	if len(rs) > n {
		n = len(rs)
	}
	rows := make([]domain.AlignedRow, 0, n)
	for i := 0; i < n; i++ {
		var row domain.AlignedRow
		if i < len(ls) {
			row.Left = ls[i]
		}
		if i < len(rs) {
			row.Right = rs[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderPage renders one page body (without the page header).
func (a *Analyzer) RenderPage(blocks []domain.TextBlock) (string, domain.ColumnSplit) {
	split := a.Split(blocks)
	if !split.IsTwoColumn {
		return a.joinRows(blocks), split
	}

	var b strings.Builder
	b.WriteString("LEFT COLUMN:\n")
	b.WriteString(a.joinRows(split.LeftBlocks))
	b.WriteString("\n\nRIGHT COLUMN:\n")
	b.WriteString(a.joinRows(split.RightBlocks))
	if split.IsBilingual {
		b.WriteString("\n\nBILINGUAL CONTENT (sentence-aligned):\n")
		b.WriteString(alignmentTable(split.Alignment))
	}
	return strings.TrimRight(b.String(), "\n"), split
}

// RenderPages renders every page with a "--- Page N ---" header.
func (a *Analyzer) RenderPages(pages []Page) DocumentLayout {
	out := DocumentLayout{Pages: len(pages)}
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		body, split := a.RenderPage(p.Blocks)
		if strings.TrimSpace(body) == "" {
			body = NoTextPlaceholder
		} else {
			out.TextPages++
		}
		if split.IsTwoColumn {
			out.TwoColumnPages++
		}
		if split.IsBilingual {
			out.BilingualPages++
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", p.Number, body))
	}
	out.Text = strings.Join(parts, "\n\n")
	return out
}

// RenderDocument groups blocks by page number and renders them in page order.
func (a *Analyzer) RenderDocument(blocks []domain.TextBlock) DocumentLayout {
	byPage := map[int][]domain.TextBlock{}
	for _, b := range blocks {
		byPage[b.Page] = append(byPage[b.Page], b)
	}
	nums := make([]int, 0, len(byPage))
	for n := range byPage {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	pages := make([]Page, 0, len(nums))
	for _, n := range nums {
		pages = append(pages, Page{Number: n, Blocks: byPage[n]})
	}
	return a.RenderPages(pages)
}

func (a *Analyzer) joinRows(blocks []domain.TextBlock) string {
	rows := a.Rows(blocks)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, 0, len(r))
		for _, b := range r {
			if t := strings.TrimSpace(b.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return strings.Join(lines, "\n")
}

func joinFlat(blocks []domain.TextBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func alignmentTable(rows []domain.AlignedRow) string {
	var b strings.Builder
	b.WriteString("| # | Left column | Right column |\n")
	b.WriteString("| --- | --- | --- |\n")
	for i, r := range rows {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", i+1, escapeCell(r.Left), escapeCell(r.Right))
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
