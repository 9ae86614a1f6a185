package api

import (
	"net/http"
)

type schemaTable struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Large   bool     `json:"large"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Registry == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema registry is not configured", true, nil)
		return
	}
	tables := make([]schemaTable, 0, len(deps.Registry.Tables()))
	for _, name := range deps.Registry.Tables() {
		tables = append(tables, schemaTable{
			Name:    name,
			Columns: deps.Registry.Columns(name),
			Large:   deps.Registry.IsLargeTable(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}
