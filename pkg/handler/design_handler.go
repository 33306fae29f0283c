package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/store"
)

// GetDesignHandler returns a design artifact as FASTA. ?aligned=true selects
// the L-column form.
func (dbctx *DBContext) GetDesignHandler(w http.ResponseWriter, r *http.Request) {
	lineage := r.PathValue("lineage")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year need to be an integer")
		return
	}
	tag, err := model.ParseTag(r.PathValue("tag"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aligned := false
	if s := r.URL.Query().Get("aligned"); s != "" {
		if aligned, err = strconv.ParseBool(s); err != nil {
			writeError(w, http.StatusBadRequest, "aligned need to be bool-like string")
			return
		}
	}

	name := tag.Slug() + ".fasta"
	if aligned {
		name = tag.Slug() + "_aligned.fasta"
	}
	data, ok, err := dbctx.Store.Get(store.Key{Lineage: lineage, Year: year, Name: name})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s design for %s/%d", tag, lineage, year))
		return
	}

	w.Header().Set("Content-Type", "text/x-fasta")
	w.Write(data)
}
