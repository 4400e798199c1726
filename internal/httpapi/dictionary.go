package httpapi

import (
	"net/http"

	"github.com/finbook/finbook/internal/dictionary"
	"github.com/finbook/finbook/internal/finance"
)

// GET /v1/dictionary/categories?type=
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
	var t *finance.TransactionType
	if ts := r.URL.Query().Get("type"); ts != "" {
		tt := finance.TransactionType(ts)
		if !tt.Valid() {
			badRequest(w, "invalid type")
			return
		}
		t = &tt
	}
	type typeItem struct {
		Type       finance.TransactionType  `json:"type"`
		Categories []dictionary.CategoryDef `json:"categories"`
	}
	out := struct {
		Items []typeItem `json:"items"`
	}{Items: []typeItem{}}
	for _, typ := range finance.Types() {
		if t != nil && *t != typ {
			continue
		}
		out.Items = append(out.Items, typeItem{Type: typ, Categories: dictionary.CategoriesFor(&typ)})
	}
	toJSON(w, http.StatusOK, out)
}
