package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIObject is a JSON-friendly scene object. Parent carries the parent's
// name; ParentID is kept for chaining.
type CLIObject struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Parent     string            `json:"parent,omitempty"`
	ParentID   *int64            `json:"parent_id,omitempty"`
	Selected   bool              `json:"selected"`
	Properties map[string]string `json:"properties,omitempty"`
}

// CLITreeNode is one node of a model hierarchy.
type CLITreeNode struct {
	Object   CLIObject     `json:"object"`
	Children []CLITreeNode `json:"children,omitempty"`
}

// CLIImport reports an import.
type CLIImport struct {
	Path      string `json:"path"`
	Objects   int    `json:"objects"`
	Unchanged bool   `json:"unchanged"`
}

// CLIExport reports an export to a file.
type CLIExport struct {
	Path    string `json:"path"`
	Objects int    `json:"objects"`
}

// CLICount reports how many objects a mutation touched.
type CLICount struct {
	Count int `json:"count"`
}

// CLIScript names a script.
type CLIScript struct {
	Name string `json:"name"`
}
