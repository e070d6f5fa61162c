package logging

// Field names for structured log entries.
const (
	FieldError   = "error"
	FieldPath    = "path"
	FieldFile    = "file"
	FieldLine    = "line"
	FieldRoot    = "root"
	FieldCount   = "count"
	FieldAddress = "address"
	FieldEditor  = "editor"
	FieldDryRun  = "dry_run"

	FieldExample   = "example"
	FieldCommit    = "commit"
	FieldSymbol    = "symbol"
	FieldBlocks    = "blocks"
	FieldEdits     = "edits"
	FieldFailures  = "failures"
	FieldMutations = "mutations"
	FieldIndex     = "index"
	FieldOrigin    = "origin"

	FieldVersion = "version"
	FieldBuilt   = "built"
)
