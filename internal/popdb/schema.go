package popdb

// Subset of the popcycle schema needed for filtering runs.

const createFilterTableSQL = `
CREATE TABLE IF NOT EXISTS filter (
    id TEXT NOT NULL,
    date TEXT NOT NULL,
    quantile REAL NOT NULL,
    beads_fsc_small REAL NOT NULL,
    beads_D1 REAL NOT NULL,
    beads_D2 REAL NOT NULL,
    width REAL NOT NULL,
    notch_small_D1 REAL NOT NULL,
    notch_small_D2 REAL NOT NULL,
    notch_large_D1 REAL NOT NULL,
    notch_large_D2 REAL NOT NULL,
    offset_small_D1 REAL NOT NULL,
    offset_small_D2 REAL NOT NULL,
    offset_large_D1 REAL NOT NULL,
    offset_large_D2 REAL NOT NULL,
    PRIMARY KEY (id, quantile)
)`

const createOppTableSQL = `
CREATE TABLE IF NOT EXISTS opp (
    file TEXT NOT NULL,
    all_count INTEGER NOT NULL,
    opp_count INTEGER NOT NULL,
    evt_count INTEGER NOT NULL,
    opp_evt_ratio REAL NOT NULL,
    filter_id TEXT NOT NULL,
    quantile REAL NOT NULL,
    PRIMARY KEY (file, filter_id, quantile)
)`

const createOutlierTableSQL = `
CREATE TABLE IF NOT EXISTS outlier (
    file TEXT NOT NULL,
    flag INTEGER NOT NULL,
    PRIMARY KEY (file)
)`

const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS metadata (
    cruise TEXT NOT NULL,
    inst TEXT NOT NULL
)`

// allSchemaSQL returns every schema statement in creation order.
func allSchemaSQL() []string {
	return []string{
		createFilterTableSQL,
		createOppTableSQL,
		createOutlierTableSQL,
		createMetadataTableSQL,
	}
}
