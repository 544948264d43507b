package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/mgsim/internal/storage"
)

type RunData struct {
	Meta    *storage.RunMetadata `json:"meta"`
	Columns []string             `json:"columns"`
	Rows    [][]float64          `json:"rows"`
}

// JSON writes a saved run, metadata and table together, as indented JSON.
func JSON(w io.Writer, meta *storage.RunMetadata, tab *storage.Table) error {
	data := RunData{
		Meta:    meta,
		Columns: tab.Columns,
		Rows:    tab.Rows,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
