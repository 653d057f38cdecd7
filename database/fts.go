package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
	_ "modernc.org/sqlite"
)

const (
	// WildcardScoreFactor is the upper bound of substring match scores.
	// Full text matches score in [WildcardScoreFactor, 1).
	WildcardScoreFactor = 0.8
	// FuzzyScoreFactor is the upper bound of approximate match scores.
	// Substring matches score in (FuzzyScoreFactor, WildcardScoreFactor].
	FuzzyScoreFactor = 0.6
	// MaxEditDistance is the largest edit distance accepted as an approximate match.
	MaxEditDistance = 3
	// MaxFuzzyScanBytes skips large items during the approximate scan.
	MaxFuzzyScanBytes = 50000
	// MaxFuzzyScanItems bounds the number of items scanned, newest first.
	MaxFuzzyScanItems = 1000
	// minTrigramLength is the shortest term the trigram tokenizer can match.
	minTrigramLength = 3
)

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
	item_id UNINDEXED,
	title,
	content,
	tokenize = 'trigram case_sensitive 0'
);

CREATE TABLE IF NOT EXISTS items_meta (
	item_id TEXT PRIMARY KEY,
	source TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	line_count INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_meta_updated_at ON items_meta (updated_at);
`

var wordPattern = regexp.MustCompile(`\w+`)

// FTSItem is a piece of text in the fuzzy index.
type FTSItem struct {
	ItemID   string
	Title    string
	Content  string
	Source   string
	Language string
	Metadata model.Metadata
}

// FTSStatistics summarizes the fuzzy index.
type FTSStatistics struct {
	TotalItems   int            `json:"total_items"`
	TotalBytes   int64          `json:"total_bytes"`
	AverageLines float64        `json:"average_lines"`
	Languages    map[string]int `json:"languages"`
}

// FTSDBHandler is the lexical search backend. It keeps a SQLite FTS5 table
// with the trigram tokenizer and answers queries with full text, substring
// and approximate matches.
type FTSDBHandler struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// NewFTSDBHandler opens the SQLite database at path and creates the index
// tables. Use ":memory:" for a private in-memory index.
func NewFTSDBHandler(path string, logger *slog.Logger) (*FTSDBHandler, error) {
	if path == "" {
		return nil, helper.NewError("fts path validation", fmt.Errorf("path is empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, helper.NewError("open sqlite", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, ftsSchema)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create fts tables", err)
	}

	handler := &FTSDBHandler{
		db:  db,
		log: logger,
		now: time.Now,
	}
	handler.log.Info("Initialized FTSDBHandler", slog.String("path", path))

	return handler, nil
}

// Close closes the SQLite database.
func (h *FTSDBHandler) Close() error {
	return h.db.Close()
}

// UpsertItem adds an item to the index or replaces the stored one.
func (h *FTSDBHandler) UpsertItem(ctx context.Context, item *FTSItem) error {
	if item.ItemID == "" {
		return helper.NewError("upsert item", fmt.Errorf("item id is empty"))
	}

	metadata, err := item.Metadata.Marshal()
	if err != nil {
		return helper.NewError("marshal metadata", err)
	}
	if item.Metadata == nil {
		metadata = []byte("{}")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DELETE FROM items_fts WHERE item_id = ?`, item.ItemID)
	if err != nil {
		return helper.NewError("delete fts row", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items_fts (item_id, title, content) VALUES (?, ?, ?)`,
		item.ItemID, item.Title, item.Content,
	)
	if err != nil {
		return helper.NewError("insert fts row", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items_meta (item_id, source, language, metadata, size_bytes, line_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			source = excluded.source,
			language = excluded.language,
			metadata = excluded.metadata,
			size_bytes = excluded.size_bytes,
			line_count = excluded.line_count,
			updated_at = excluded.updated_at`,
		item.ItemID,
		item.Source,
		item.Language,
		string(metadata),
		len(item.Content),
		strings.Count(item.Content, "\n")+1,
		h.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return helper.NewError("upsert item meta", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	h.log.Debug("Indexed item", slog.String("item_id", item.ItemID), slog.Int("bytes", len(item.Content)))
	return nil
}

// DeleteItem removes an item from the index.
func (h *FTSDBHandler) DeleteItem(ctx context.Context, itemID string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE item_id = ?`, itemID); err != nil {
		return helper.NewError("delete fts row", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_meta WHERE item_id = ?`, itemID); err != nil {
		return helper.NewError("delete item meta", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}
	return nil
}

// Search returns up to limit matches, best first. Full text matches are
// tried first, then substring matches of the single terms. When fewer than
// limit items were found, approximate word matches fill up the rest.
// Every item appears once, with the score of its strongest match type.
func (h *FTSDBHandler) Search(ctx context.Context, query string, limit int) ([]*model.TextMatch, error) {
	if limit <= 0 {
		return []*model.TextMatch{}, nil
	}

	terms := queryTerms(query)
	matches := []*model.TextMatch{}
	seen := map[string]bool{}
	add := func(found []*model.TextMatch) {
		for _, m := range found {
			if !seen[m.ItemID] {
				seen[m.ItemID] = true
				matches = append(matches, m)
			}
		}
	}

	fullText, err := h.fullTextSearch(ctx, terms, limit)
	if err != nil {
		return nil, err
	}
	add(fullText)

	wildcard, err := h.wildcardSearch(ctx, terms, limit)
	if err != nil {
		return nil, err
	}
	add(wildcard)

	if len(matches) < limit {
		approximate, err := h.approximateSearch(ctx, query, limit-len(matches), seen)
		if err != nil {
			return nil, err
		}
		add(approximate)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// fullTextSearch runs an FTS5 MATCH over title and content. bm25 is
// negative with lower being better, it is mapped onto [WildcardScoreFactor, 1)
// so a full text match always outranks a substring match.
func (h *FTSDBHandler) fullTextSearch(ctx context.Context, terms []string, limit int) ([]*model.TextMatch, error) {
	matchQuery := ftsMatchQuery(terms)
	if matchQuery == "" {
		return nil, nil
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT f.item_id, f.title, f.content, COALESCE(m.metadata, '{}'), bm25(items_fts) AS rank
		FROM items_fts f
		LEFT JOIN items_meta m ON m.item_id = f.item_id
		WHERE items_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		matchQuery, limit,
	)
	if err != nil {
		return nil, helper.NewError("full text query", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []*model.TextMatch{}
	for rows.Next() {
		match := &model.TextMatch{MatchType: model.MatchTypeFTS}
		var rank float64
		err := rows.Scan(&match.ItemID, &match.Title, &match.Content, &match.Metadata, &rank)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		relevance := -rank
		if relevance < 0 {
			relevance = 0
		}
		match.Score = WildcardScoreFactor + (1-WildcardScoreFactor)*relevance/(1+relevance)
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}
	return matches, nil
}

// wildcardSearch finds items containing any term as a substring. The share
// of terms found is mapped onto (FuzzyScoreFactor, WildcardScoreFactor].
func (h *FTSDBHandler) wildcardSearch(ctx context.Context, terms []string, limit int) ([]*model.TextMatch, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	hits := map[string]*model.TextMatch{}
	counts := map[string]int{}
	order := []string{}

	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		rows, err := h.db.QueryContext(ctx, `
			SELECT f.item_id, f.title, f.content, COALESCE(m.metadata, '{}')
			FROM items_fts f
			LEFT JOIN items_meta m ON m.item_id = f.item_id
			WHERE f.content LIKE ? ESCAPE '\' OR f.title LIKE ? ESCAPE '\'
			LIMIT ?`,
			pattern, pattern, limit,
		)
		if err != nil {
			return nil, helper.NewError("wildcard query", err)
		}

		for rows.Next() {
			match := &model.TextMatch{MatchType: model.MatchTypeWildcard}
			err := rows.Scan(&match.ItemID, &match.Title, &match.Content, &match.Metadata)
			if err != nil {
				_ = rows.Close()
				return nil, helper.NewError("scan", err)
			}
			if _, ok := hits[match.ItemID]; !ok {
				hits[match.ItemID] = match
				order = append(order, match.ItemID)
			}
			counts[match.ItemID]++
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, helper.NewError("rows error", err)
		}
	}

	matches := make([]*model.TextMatch, 0, len(order))
	for _, id := range order {
		match := hits[id]
		share := float64(counts[id]) / float64(len(terms))
		match.Score = FuzzyScoreFactor + (WildcardScoreFactor-FuzzyScoreFactor)*share
		matches = append(matches, match)
	}
	return matches, nil
}

// approximateSearch compares the query with every word of recent, small
// items and keeps items with a word within MaxEditDistance.
func (h *FTSDBHandler) approximateSearch(ctx context.Context, query string, limit int, skip map[string]bool) ([]*model.TextMatch, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT f.item_id, f.title, f.content, m.metadata
		FROM items_fts f
		JOIN items_meta m ON m.item_id = f.item_id
		WHERE m.size_bytes < ?
		ORDER BY m.updated_at DESC
		LIMIT ?`,
		MaxFuzzyScanBytes, MaxFuzzyScanItems,
	)
	if err != nil {
		return nil, helper.NewError("approximate query", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []*model.TextMatch{}
	for rows.Next() {
		match := &model.TextMatch{MatchType: model.MatchTypeFuzzy}
		err := rows.Scan(&match.ItemID, &match.Title, &match.Content, &match.Metadata)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		if skip[match.ItemID] {
			continue
		}

		word, distance := closestWord(needle, match.Content)
		if distance > MaxEditDistance {
			continue
		}

		match.Score = FuzzyScoreFactor / (1 + float64(distance))
		if match.Metadata == nil {
			match.Metadata = model.Metadata{}
		}
		match.Metadata["matched_word"] = word
		match.Metadata["edit_distance"] = distance
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Statistics returns item counts and sizes of the index.
func (h *FTSDBHandler) Statistics(ctx context.Context) (*FTSStatistics, error) {
	stats := &FTSStatistics{Languages: map[string]int{}}

	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(AVG(line_count), 0)
		FROM items_meta`,
	).Scan(&stats.TotalItems, &stats.TotalBytes, &stats.AverageLines)
	if err != nil {
		return nil, helper.NewError("scan totals", err)
	}

	rows, err := h.db.QueryContext(ctx, `SELECT language, COUNT(*) FROM items_meta GROUP BY language`)
	if err != nil {
		return nil, helper.NewError("query languages", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var language string
		var count int
		if err := rows.Scan(&language, &count); err != nil {
			return nil, helper.NewError("scan", err)
		}
		stats.Languages[language] = count
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return stats, nil
}

// queryTerms lowercases the query and keeps distinct words the trigram
// tokenizer can match.
func queryTerms(query string) []string {
	terms := []string{}
	seen := map[string]bool{}
	for _, word := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(word)) < minTrigramLength || seen[word] {
			continue
		}
		seen[word] = true
		terms = append(terms, word)
	}
	return terms
}

// ftsMatchQuery quotes every term and joins them with AND, so no FTS5
// operator from user input is interpreted.
func ftsMatchQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " AND ")
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

// closestWord returns the word of content nearest to needle by edit distance.
// Words shorter than three characters are ignored.
func closestWord(needle string, content string) (string, int) {
	best, bestDistance := "", MaxEditDistance+1
	for _, word := range wordPattern.FindAllString(strings.ToLower(content), -1) {
		if len(word) <= 2 {
			continue
		}
		distance := levenshtein.ComputeDistance(needle, word)
		if distance < bestDistance {
			best, bestDistance = word, distance
			if distance == 0 {
				break
			}
		}
	}
	return best, bestDistance
}
