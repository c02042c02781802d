package history

// SchemaSQL contains the run-history schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- GENERATION RUN TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS generation_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS item_id ON generation_run TYPE string;
    DEFINE FIELD IF NOT EXISTS template_id ON generation_run TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON generation_run TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON generation_run TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON generation_run TYPE string;
    DEFINE FIELD IF NOT EXISTS progress ON generation_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS error ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS job_id ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON generation_run TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON generation_run TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS html_url ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS pdf_url ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS docx_url ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS xlsx_url ON generation_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON generation_run TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS generation_run_item ON generation_run FIELDS item_id;
    DEFINE INDEX IF NOT EXISTS generation_run_template ON generation_run FIELDS template_id;
    DEFINE INDEX IF NOT EXISTS generation_run_created ON generation_run FIELDS created;

    -- ==========================================================================
    -- DOWNLOAD TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS download SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS record_id ON download TYPE string;
    DEFINE FIELD IF NOT EXISTS template_id ON download TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON download TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON download TYPE string;
    DEFINE FIELD IF NOT EXISTS format ON download TYPE string;
    DEFINE FIELD IF NOT EXISTS url ON download TYPE string;
    -- Full run parameters kept for rerun, shape varies with filters.
    DEFINE FIELD IF NOT EXISTS params ON download TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON download TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS download_record ON download FIELDS record_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS download_created ON download FIELDS created;
`
