package vectorstore

import "fmt"

// schemaSQL returns the DDL for one ephemeral index. dim controls the vec0
// virtual table dimension.
func schemaSQL(dim int) string {
	return fmt.Sprintf(`
-- Section rows copied in by Insert
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL,
    title TEXT,
    content TEXT NOT NULL,
    source TEXT NOT NULL,
    metadata JSON
);

-- Section embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_sections USING vec0(
    section_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`, dim)
}
