package db

import "fmt"

// schemaSQL defines the advisory tables. The HNSW index is created with
// the embedding dimension of the published snapshot.
const schemaSQL = `
    -- ==========================================================================
    -- ADVISORY TABLE (encoded Q&A documents)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS advisory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS advisory_id ON advisory TYPE string;
    DEFINE FIELD IF NOT EXISTS position ON advisory TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON advisory TYPE string;
    DEFINE FIELD IF NOT EXISTS region ON advisory TYPE string;
    DEFINE FIELD IF NOT EXISTS topic ON advisory TYPE string;
    DEFINE FIELD IF NOT EXISTS search_text ON advisory TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON advisory TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON advisory TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS advisory_id_unique ON advisory FIELDS advisory_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS advisory_position ON advisory FIELDS position;
    DEFINE INDEX IF NOT EXISTS advisory_topic ON advisory FIELDS topic;
    DEFINE INDEX IF NOT EXISTS advisory_region ON advisory FIELDS region;
    DEFINE INDEX IF NOT EXISTS advisory_embedding ON advisory FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
    DEFINE ANALYZER IF NOT EXISTS advisory_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS advisory_search_ft ON advisory FIELDS search_text FULLTEXT ANALYZER advisory_analyzer BM25;

    -- ==========================================================================
    -- ADVISORY_META TABLE (single record describing the published index)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS advisory_meta SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS model ON advisory_meta TYPE string;
    DEFINE FIELD IF NOT EXISTS dimension ON advisory_meta TYPE int;
    DEFINE FIELD IF NOT EXISTS doc_count ON advisory_meta TYPE int;
    DEFINE FIELD IF NOT EXISTS published ON advisory_meta TYPE datetime DEFAULT time::now();
`

// redefineVectorIndexSQL replaces the HNSW index when the dimension changes.
const redefineVectorIndexSQL = `
    REMOVE INDEX IF EXISTS advisory_embedding ON advisory;
    DEFINE INDEX advisory_embedding ON advisory FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

// SchemaSQL returns the schema for the given embedding dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaSQL, dimension)
}
