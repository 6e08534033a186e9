package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"telecast/models"
)

// Repository provides index store persistence. The sync coordinator is the
// only bulk writer; pagers and existence checks are the read path.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func sectionTypes(section models.Section) []models.ContentType {
	switch section {
	case models.SectionMovies:
		return []models.ContentType{models.ContentTypeMovie}
	case models.SectionSeries:
		return []models.ContentType{models.ContentTypeSeries}
	case models.SectionLive:
		return []models.ContentType{models.ContentTypeLive}
	default: // ALL and UI-only views read across every sync target
		return []models.ContentType{models.ContentTypeMovie, models.ContentTypeSeries, models.ContentTypeLive}
	}
}

// CommitPage stores one fetched page and advances the section checkpoint in
// the same transaction, so a page either fully commits or not at all.
func (r *Repository) CommitPage(accountKey string, section models.Section, items []models.ContentItem, searchTexts []string, cursorAfter, itemsIndexed, totalEstimate int) error {
	if len(items) != len(searchTexts) {
		return fmt.Errorf("items/searchTexts length mismatch: %d vs %d", len(items), len(searchTexts))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin page commit: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO content_items
			(account_key, content_type, id, stream_id, name, search_text, category_id,
			 container_extension, poster, season, episode, added_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_key, content_type, id) DO UPDATE SET
			stream_id = excluded.stream_id,
			name = excluded.name,
			search_text = excluded.search_text,
			category_id = excluded.category_id,
			container_extension = excluded.container_extension,
			poster = excluded.poster,
			season = excluded.season,
			episode = excluded.episode,
			added_at = excluded.added_at,
			position = excluded.position`)
	if err != nil {
		return fmt.Errorf("prepare item upsert: %w", err)
	}
	defer stmt.Close()

	basePos := cursorAfter - len(items)
	for i, item := range items {
		if _, err := stmt.Exec(
			accountKey, string(item.Type), item.ID, item.StreamID, item.Name,
			searchTexts[i], item.CategoryID, item.ContainerExtension, item.Poster,
			item.Season, item.Episode, item.AddedAt, basePos+i,
		); err != nil {
			return fmt.Errorf("upsert item %s: %w", item.MediaID(), err)
		}
	}

	// MAX guards keep the checkpoint monotonic even if a stale job's commit
	// slips in after a newer one; is_complete is never touched here.
	if _, err := tx.Exec(`
		INSERT INTO section_checkpoints
			(account_key, section, cursor, items_indexed, total_estimate, is_complete, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(account_key, section) DO UPDATE SET
			cursor = MAX(cursor, excluded.cursor),
			items_indexed = MAX(items_indexed, excluded.items_indexed),
			total_estimate = excluded.total_estimate,
			updated_at = excluded.updated_at`,
		accountKey, string(section), cursorAfter, itemsIndexed, totalEstimate, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}

	return tx.Commit()
}

// CompleteSection marks a section checkpoint as finished.
func (r *Repository) CompleteSection(accountKey string, section models.Section) error {
	_, err := r.db.Exec(`
		INSERT INTO section_checkpoints
			(account_key, section, cursor, items_indexed, total_estimate, is_complete, updated_at)
		VALUES (?, ?, 0, 0, 0, 1, ?)
		ON CONFLICT(account_key, section) DO UPDATE SET
			is_complete = 1,
			updated_at = excluded.updated_at`,
		accountKey, string(section), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete section %s: %w", section, err)
	}
	return nil
}

// ResetCheckpoints removes checkpoints for the targeted sections. Only a
// forced resync goes through here; cached items stay and are overwritten as
// the fresh pass commits new pages.
func (r *Repository) ResetCheckpoints(accountKey string, sections []models.Section) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin checkpoint reset: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sections {
		if _, err := tx.Exec(
			`DELETE FROM section_checkpoints WHERE account_key = ? AND section = ?`,
			accountKey, string(s),
		); err != nil {
			return fmt.Errorf("reset checkpoint %s: %w", s, err)
		}
	}
	return tx.Commit()
}

// GetCheckpoint returns the checkpoint for one section, or nil when the
// section has never been synced.
func (r *Repository) GetCheckpoint(accountKey string, section models.Section) (*models.SectionSyncCheckpoint, error) {
	row := r.db.QueryRow(`
		SELECT cursor, items_indexed, total_estimate, is_complete, updated_at
		FROM section_checkpoints
		WHERE account_key = ? AND section = ?`,
		accountKey, string(section))

	ckpt := models.SectionSyncCheckpoint{Section: section}
	var complete int
	err := row.Scan(&ckpt.Cursor, &ckpt.ItemsIndexed, &ckpt.TotalEstimate, &complete, &ckpt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", section, err)
	}
	ckpt.IsComplete = complete != 0
	return &ckpt, nil
}

// ListCheckpoints returns all checkpoints recorded for an account.
func (r *Repository) ListCheckpoints(accountKey string) ([]models.SectionSyncCheckpoint, error) {
	rows, err := r.db.Query(`
		SELECT section, cursor, items_indexed, total_estimate, is_complete, updated_at
		FROM section_checkpoints
		WHERE account_key = ?`,
		accountKey)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []models.SectionSyncCheckpoint
	for rows.Next() {
		var ckpt models.SectionSyncCheckpoint
		var section string
		var complete int
		if err := rows.Scan(&section, &ckpt.Cursor, &ckpt.ItemsIndexed, &ckpt.TotalEstimate, &complete, &ckpt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		ckpt.Section = models.Section(section)
		ckpt.IsComplete = complete != 0
		out = append(out, ckpt)
	}
	return out, rows.Err()
}

// UpsertCategories replaces the category set known for a section.
func (r *Repository) UpsertCategories(accountKey string, section models.Section, cats []models.Category) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin category upsert: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cats {
		if _, err := tx.Exec(`
			INSERT INTO categories (account_key, section, id, name, thumbnail)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_key, section, id) DO UPDATE SET
				name = excluded.name,
				thumbnail = excluded.thumbnail`,
			accountKey, string(section), c.ID, c.Name, c.Thumbnail,
		); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListCategories returns the categories cached for a section.
func (r *Repository) ListCategories(accountKey string, section models.Section) ([]models.Category, error) {
	rows, err := r.db.Query(`
		SELECT id, name, thumbnail FROM categories
		WHERE account_key = ? AND section = ?
		ORDER BY name`,
		accountKey, string(section))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c := models.Category{Section: section}
		if err := rows.Scan(&c.ID, &c.Name, &c.Thumbnail); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryThumbnail returns the stored thumbnail URL for a category, falling
// back to the poster of its first item when the category has none.
func (r *Repository) CategoryThumbnail(accountKey string, section models.Section, categoryID string) (string, error) {
	var thumb string
	err := r.db.QueryRow(`
		SELECT thumbnail FROM categories
		WHERE account_key = ? AND section = ? AND id = ?`,
		accountKey, string(section), categoryID).Scan(&thumb)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("category thumbnail: %w", err)
	}
	if thumb != "" {
		return thumb, nil
	}

	types := sectionTypes(section)
	err = r.db.QueryRow(fmt.Sprintf(`
		SELECT poster FROM content_items
		WHERE account_key = ? AND category_id = ? AND poster != ''
			AND content_type IN (%s)
		ORDER BY position LIMIT 1`, placeholders(len(types))),
		append([]interface{}{accountKey, categoryID}, typeArgs(types)...)...).Scan(&thumb)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("category thumbnail fallback: %w", err)
	}
	return thumb, nil
}

// ItemQuery narrows a paged content read.
type ItemQuery struct {
	Section    models.Section
	CategoryID string
	// SearchTerms are pre-normalized tokens matched against search_text.
	SearchTerms []string
	Offset      int
	Limit       int
}

// QueryItems returns one committed page for the query plus the total row
// count, so readers can estimate completeness mid-sync.
func (r *Repository) QueryItems(accountKey string, q ItemQuery) ([]models.ContentItem, int, error) {
	types := sectionTypes(q.Section)

	var where strings.Builder
	args := []interface{}{accountKey}
	where.WriteString("account_key = ?")

	where.WriteString(fmt.Sprintf(" AND content_type IN (%s)", placeholders(len(types))))
	args = append(args, typeArgs(types)...)

	if q.CategoryID != "" {
		where.WriteString(" AND category_id = ?")
		args = append(args, q.CategoryID)
	}
	for _, term := range q.SearchTerms {
		where.WriteString(" AND search_text LIKE ?")
		args = append(args, "%"+term+"%")
	}

	var total int
	if err := r.db.QueryRow(
		"SELECT COUNT(*) FROM content_items WHERE "+where.String(), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT content_type, id, stream_id, name, category_id, container_extension,
			poster, season, episode, added_at
		FROM content_items WHERE `+where.String()+`
		ORDER BY content_type, position
		LIMIT ? OFFSET ?`,
		append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		var item models.ContentItem
		var ctype string
		var added sql.NullTime
		if err := rows.Scan(&ctype, &item.ID, &item.StreamID, &item.Name, &item.CategoryID,
			&item.ContainerExtension, &item.Poster, &item.Season, &item.Episode, &added); err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		item.Type = models.ContentType(ctype)
		if added.Valid {
			item.AddedAt = added.Time
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// CountItems reports how many rows a section currently holds.
func (r *Repository) CountItems(accountKey string, section models.Section) (int, error) {
	types := sectionTypes(section)
	var total int
	err := r.db.QueryRow(fmt.Sprintf(
		"SELECT COUNT(*) FROM content_items WHERE account_key = ? AND content_type IN (%s)",
		placeholders(len(types))),
		append([]interface{}{accountKey}, typeArgs(types)...)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count section %s: %w", section, err)
	}
	return total, nil
}

// DeleteAccount removes every cached row belonging to an account.
func (r *Repository) DeleteAccount(accountKey string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin account delete: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"content_items", "categories", "section_checkpoints"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE account_key = ?", accountKey); err != nil {
			return fmt.Errorf("delete %s rows: %w", table, err)
		}
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func typeArgs(types []models.ContentType) []interface{} {
	out := make([]interface{}, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
